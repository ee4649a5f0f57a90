// Package files locates day thumbnails and reads and writes images in storage folders.
package files

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"mtm-automation/pkg/mtm"
)

// Lister enumerates the files directly inside a folder.
type Lister interface {
	List(ctx context.Context, folderID string) ([]mtm.FileRef, error)
}

// Folder is a file collection that can be listed, read and written.
type Folder interface {
	Lister
	Download(ctx context.Context, fileID string) ([]byte, error)
	Replace(ctx context.Context, folderID, name, mimeType string, data []byte) (mtm.FileRef, error)
}

// ThumbnailPattern matches the file name of a day's thumbnail, e.g. 42.jpg.
func ThumbnailPattern(index int) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + strconv.Itoa(index) + `\.(jpg|jpeg|png|webp)$`)
}

// FindThumbnail looks for the thumbnail of day in folderID.
// The first matching file in listing order wins; a missing file is Found=false, not an error.
func FindThumbnail(ctx context.Context, l Lister, program mtm.Program, folderID, day string) (mtm.Thumbnail, error) {
	index, err := program.Index(day)
	if err != nil {
		return mtm.Thumbnail{}, err
	}
	thumb := mtm.Thumbnail{Day: day, Index: index}

	files, err := l.List(ctx, folderID)
	if err != nil {
		return thumb, mtm.Remote(fmt.Sprintf("list folder %s", folderID), err)
	}

	re := ThumbnailPattern(index)
	for _, f := range files {
		if re.MatchString(f.Name) {
			file := f
			thumb.Found = true
			thumb.File = &file
			return thumb, nil
		}
	}
	return thumb, nil
}

// DayImageName is the file name generated images are saved under.
func DayImageName(index int) string {
	return strconv.Itoa(index) + ".jpg"
}
