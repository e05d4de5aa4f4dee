// Package ooxml holds the Office Open XML plumbing shared by the DOCX/PPTX
// readers and the template renderer: bounded part reads from the zip
// container and the docProps/core.xml property set.
package ooxml

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/docmcp/horosafe"
)

// MaxPartSize bounds a single decompressed part (64 MB).
const MaxPartSize int64 = 64 << 20

// ErrPartNotFound is returned when a named part is absent from the package.
var ErrPartNotFound = errors.New("ooxml: part not found")

// Part returns the zip entry with the given name, or nil.
func Part(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ReadPart reads a named part with the MaxPartSize ceiling.
func ReadPart(zr *zip.Reader, name string) ([]byte, error) {
	f := Part(zr, name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	return ReadFile(f)
}

// ReadFile reads a zip entry with the MaxPartSize ceiling.
func ReadFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := horosafe.LimitedReadAll(rc, MaxPartSize)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// PartsWithPrefix lists entry names under prefix ending in suffix, sorted
// with numeric awareness so slide10.xml follows slide9.xml.
func PartsWithPrefix(zr *zip.Reader, prefix, suffix string) []string {
	var names []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) && strings.HasSuffix(f.Name, suffix) {
			names = append(names, f.Name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// CoreProperties is the Dublin Core property set of docProps/core.xml.
type CoreProperties struct {
	Title          string `xml:"title" json:"title"`
	Subject        string `xml:"subject" json:"subject"`
	Creator        string `xml:"creator" json:"author"`
	Keywords       string `xml:"keywords" json:"keywords"`
	Description    string `xml:"description" json:"comments"`
	LastModifiedBy string `xml:"lastModifiedBy" json:"last_modified_by"`
	Revision       string `xml:"revision" json:"revision"`
	Category       string `xml:"category" json:"category"`
	Created        string `xml:"created" json:"created,omitempty"`
	Modified       string `xml:"modified" json:"modified,omitempty"`
}

// ReadCoreProperties decodes docProps/core.xml. A package without the part
// yields zero properties, not an error.
func ReadCoreProperties(zr *zip.Reader) (CoreProperties, error) {
	var props CoreProperties
	data, err := ReadPart(zr, "docProps/core.xml")
	if errors.Is(err, ErrPartNotFound) {
		return props, nil
	}
	if err != nil {
		return props, err
	}
	if err := xml.Unmarshal(data, &props); err != nil {
		return props, fmt.Errorf("decode core properties: %w", err)
	}
	return props, nil
}
