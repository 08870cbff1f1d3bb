package config

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// cueToYAML evaluates a CUE suite and re-encodes the concrete result as YAML,
// so both formats go through the same schema walk.
func cueToYAML(data []byte) ([]byte, []ValidationError) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename("suite.cue"))
	if err := v.Err(); err != nil {
		return nil, cueErrors(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueErrors(err)
	}
	out, err := cueyaml.Encode(v)
	if err != nil {
		return nil, cueErrors(err)
	}
	return out, nil
}

// cueErrors flattens a CUE error list into document errors carrying the CUE
// source position.
func cueErrors(err error) []ValidationError {
	list := errors.Errors(err)
	if len(list) == 0 {
		return []ValidationError{{Field: "cue", Message: err.Error(), Code: ErrDocumentShape}}
	}
	out := make([]ValidationError, 0, len(list))
	for _, e := range list {
		ve := ValidationError{Field: "cue", Message: e.Error(), Code: ErrDocumentShape}
		if pos := errors.Positions(e); len(pos) > 0 {
			ve.Line = pos[0].Line()
		}
		out = append(out, ve)
	}
	return out
}
