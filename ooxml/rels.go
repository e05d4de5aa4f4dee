package ooxml

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Relationship types used by the readers.
const (
	RelSlide      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	RelNotesSlide = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
	RelImage      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// External reports whether the target lives outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// RelsPath returns the relationships part of a package part:
// ppt/slides/slide1.xml -> ppt/slides/_rels/slide1.xml.rels.
func RelsPath(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// ResolveTarget resolves a relationship target against the part that owns
// the relationship.
func ResolveTarget(part, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(path.Dir(part), target))
}

// ReadRels reads the relationships of part, keyed by id. A part without a
// .rels companion has no relationships.
func ReadRels(zr *zip.Reader, part string) (map[string]Relationship, error) {
	data, err := ReadPart(zr, RelsPath(part))
	if errors.Is(err, ErrPartNotFound) {
		return map[string]Relationship{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc struct {
		Rels []Relationship `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", RelsPath(part), err)
	}
	out := make(map[string]Relationship, len(doc.Rels))
	for _, r := range doc.Rels {
		out[r.ID] = r
	}
	return out, nil
}
