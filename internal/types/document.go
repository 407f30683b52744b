package types

import "fmt"

// Document is a loaded source document. PageCount is zero when unknown.
type Document struct {
	Name      string
	Data      []byte
	MIMEType  string
	PageCount int
}

// CheckRange validates r and, when the page count is known, that r fits inside the document.
func (d *Document) CheckRange(r PageRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if d.PageCount > 0 && r.End > d.PageCount {
		return fmt.Errorf("%w: %s is past the last page of %s (%d pages)", ErrInvalidPageRange, r, d.Name, d.PageCount)
	}
	return nil
}

// Image is one auxiliary hint image.
type Image struct {
	Name     string
	Data     []byte
	MIMEType string
}
