// Package langcode validates the three-letter language code documents are
// filtered on and names the language it denotes.
package langcode

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Default is the code of English-language volumes.
const Default = "eng"

// bibliographic maps ISO 639-2/B codes, which library metadata uses, to their
// ISO 639-3 equivalents.
var bibliographic = map[string]string{
	"alb": "sqi",
	"arm": "hye",
	"baq": "eus",
	"chi": "zho",
	"cze": "ces",
	"dut": "nld",
	"fre": "fra",
	"geo": "kat",
	"ger": "deu",
	"gre": "ell",
	"ice": "isl",
	"mac": "mkd",
	"mao": "mri",
	"may": "msa",
	"per": "fas",
	"rum": "ron",
	"slo": "slk",
	"wel": "cym",
}

// Info describes a filter code.
type Info struct {
	// Code is the code documents are compared against, lower-cased.
	Code string
	// Name is the English name of the language, empty when unknown.
	Name string
}

// Known reports whether the code names a recognized language.
func (i Info) Known() bool { return i.Name != "" }

// Parse normalizes code and looks up its language. The code must be three
// ASCII letters; an unrecognized but well-formed code is returned with an
// empty Name.
func Parse(code string) (Info, error) {
	c := strings.ToLower(strings.TrimSpace(code))
	if len(c) != 3 {
		return Info{}, fmt.Errorf("language code %q must be three letters", code)
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'a' || c[i] > 'z' {
			return Info{}, fmt.Errorf("language code %q must be three letters", code)
		}
	}

	lookup := c
	if iso, ok := bibliographic[c]; ok {
		lookup = iso
	}
	return Info{Code: c, Name: name(lookup)}, nil
}

func name(iso6393 string) string {
	for _, lang := range lingua.AllLanguages() {
		if strings.EqualFold(lang.IsoCode639_3().String(), iso6393) {
			return titleCase(lang.String())
		}
	}
	return ""
}

// titleCase turns "ENGLISH" or "english" into "English".
func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
