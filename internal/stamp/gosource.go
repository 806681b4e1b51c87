package stamp

import (
	"bytes"
	"fmt"
	"go/token"
	"strconv"
	"text/template"

	"github.com/go-playground/validator/v10"
	"golang.org/x/tools/imports"

	"github.com/launchbynttdata/launch-git-versioner/internal/domain/gitinfo"
)

// DefaultGoFile is the file name `lgv generate` writes when none is given.
const DefaultGoFile = "gitversion_gen.go"

// GoOptions controls generated Go source.
type GoOptions struct {
	// Package is the package clause of the generated file.
	Package string `validate:"required,goident"`
	// Generator is named in the "Code generated" header.
	Generator string `validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("goident", func(fl validator.FieldLevel) bool {
		return token.IsIdentifier(fl.Field().String())
	})
	return v
}

var goTemplate = template.Must(template.New("gitversion").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(`// Code generated by {{.Generator}}. DO NOT EDIT.

package {{.Package}}

// Git version of the source tree, frozen when this file was generated.
// GitVersionKnown is false when the version could not be determined.
const (
	GitVersionKnown    = {{.Known}}
	GitHasTag          = {{.HasTag}}
	GitTag             = {{quote .Tag}}
	GitCommitsSinceTag = {{.CommitsSinceTag}}
	GitCommitID        = {{quote .CommitID}}
	GitModified        = {{.Modified}}
	GitVersion         = {{quote .Version}}
)
`))

type goData struct {
	GoOptions
	Known           bool
	HasTag          bool
	Tag             string
	CommitsSinceTag uint32
	CommitID        string
	Modified        bool
	Version         string
}

// GenerateGo renders a self-contained Go file declaring the version as constants.
// A nil info yields the unknown record.
func GenerateGo(opts GoOptions, info *gitinfo.GitInfo) ([]byte, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid go options: %w", err)
	}

	data := goData{GoOptions: opts}
	if info != nil {
		data.Known = true
		data.CommitID = info.CommitID
		data.Modified = info.Modified
		data.Version = info.String()
		if info.TagInfo != nil {
			data.HasTag = true
			data.Tag = info.TagInfo.Tag
			data.CommitsSinceTag = info.TagInfo.CommitsSinceTag
		}
	}

	var buf bytes.Buffer
	if err := goTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering go source: %w", err)
	}

	formatted, err := imports.Process(DefaultGoFile, buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("formatting go source: %w", err)
	}
	return formatted, nil
}

// WriteGo writes the generated source to path.
func WriteGo(path string, opts GoOptions, info *gitinfo.GitInfo) error {
	src, err := GenerateGo(opts, info)
	if err != nil {
		return err
	}
	return writeFile(path, src)
}
