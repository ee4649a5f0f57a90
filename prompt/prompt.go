// Package prompt composes the image-generation prompt for a program day from variant pools.
package prompt

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"mtm-automation/pkg/mtm"
)

// Variant pool names.
const (
	ListGenders    = "genders"
	ListStyles     = "styles"
	ListLocations  = "locations"
	ListClothes    = "clothes"
	ListHairFemale = "hair_female"
	ListHairMale   = "hair_male"
	ListPalette    = "palette"
)

const (
	female        = "женский"
	sundayPalette = "только красные тона"
)

// Lists are all variant pools a prompt draws from.
var Lists = []string{ListGenders, ListStyles, ListLocations, ListClothes, ListHairFemale, ListHairMale, ListPalette}

// VariantSource returns the non-empty values of a named pool.
type VariantSource interface {
	Variants(ctx context.Context, list string) ([]string, error)
}

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

type randPicker struct{}

func (randPicker) IntN(n int) int { return rand.IntN(n) }

// Prompt is a composed prompt and the choices behind it.
type Prompt struct {
	Day      int    `json:"day"`
	Date     string `json:"date"`
	Style    string `json:"style"`
	Gender   string `json:"gender"`
	Location string `json:"location"`
	Clothes  string `json:"clothes"`
	Hair     string `json:"hair"`
	Palette  string `json:"palette"`
	Text     string `json:"text"`
}

// Composer builds prompts.
type Composer struct {
	source  VariantSource
	picker  Picker
	program mtm.Program
}

// NewComposer creates a composer. A nil picker uses math/rand/v2.
func NewComposer(source VariantSource, picker Picker, program mtm.Program) *Composer {
	if picker == nil {
		picker = randPicker{}
	}
	return &Composer{source: source, picker: picker, program: program}
}

func (c *Composer) pick(ctx context.Context, list string) (string, error) {
	values, err := c.source.Variants(ctx, list)
	if err != nil {
		return "", &mtm.ConfigError{Reason: fmt.Sprintf("variant list %q unavailable: %v", list, err)}
	}
	if len(values) == 0 {
		return "", &mtm.ConfigError{Reason: fmt.Sprintf("variant list %q is empty", list)}
	}
	return values[c.picker.IntN(len(values))], nil
}

// Compose builds the prompt for program day n.
func (c *Composer) Compose(ctx context.Context, day int) (*Prompt, error) {
	date, err := c.program.DateFor(day)
	if err != nil {
		return nil, err
	}
	p := &Prompt{Day: day, Date: mtm.FormatDay(date)}

	for _, f := range []struct {
		list string
		dst  *string
	}{
		{ListGenders, &p.Gender},
		{ListStyles, &p.Style},
		{ListLocations, &p.Location},
		{ListClothes, &p.Clothes},
	} {
		if *f.dst, err = c.pick(ctx, f.list); err != nil {
			return nil, err
		}
	}

	hairList := ListHairMale
	if p.Gender == female {
		hairList = ListHairFemale
	}
	if p.Hair, err = c.pick(ctx, hairList); err != nil {
		return nil, err
	}

	if mtm.IsSunday(date) {
		p.Palette = sundayPalette
	} else if p.Palette, err = c.pick(ctx, ListPalette); err != nil {
		return nil, err
	}

	p.Text = render(p)
	return p, nil
}

func render(p *Prompt) string {
	return strings.Join([]string{
		"Перерисовать изображение в стиле: " + p.Style,
		`Текст: Сохранить арочный заголовок "MASTER'S TOUCH MEDITATION". ` +
			`Добавить под ним четкий подзаголовок "Day ` + strconv.Itoa(p.Day) + ` of ` + strconv.Itoa(mtm.TotalDays) + `". ` +
			"Текст и заголовок должен контрастировать с фоном.",
		"Пол: " + p.Gender,
		"Локация: " + p.Location,
		"Одежда: " + p.Clothes,
		"Волосяной покров: " + p.Hair,
		"Цветовая палитра: " + p.Palette,
		"Ориентация: Альбомная",
	}, "\n")
}
