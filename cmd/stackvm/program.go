package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/wippyai/stackvm/code"
	"github.com/wippyai/stackvm/decode"
	"github.com/wippyai/stackvm/errors"
)

// programOptions selects how program files are decoded.
type programOptions struct {
	format        string
	signature     string
	signatureFile string
}

func (o *programOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.format, "format", "f", "", "Input format: text or tuples (default: by file extension)")
	flags.StringVarP(&o.signature, "signature", "s", "", "Result signature, e.g. \"i32,i64\"; overrides the file's own")
	flags.StringVar(&o.signatureFile, "signature-file", "", "File holding the result signature as a list, e.g. [\"i32\"]")
}

// load decodes path and applies any signature override.
func (o *programOptions) load(path string) (*code.Program, error) {
	f, err := decode.ParseFormat(o.format)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidInput, err, "--format")
	}
	prog, err := decode.File(path, f)
	if err != nil {
		return nil, err
	}

	switch {
	case o.signature != "" && o.signatureFile != "":
		return nil, errors.InvalidInput(errors.PhaseDecode, "--signature and --signature-file are exclusive")
	case o.signature != "":
		if prog.Signature, err = decode.ParseTypes(o.signature); err != nil {
			return nil, err
		}
	case o.signatureFile != "":
		data, err := os.ReadFile(o.signatureFile)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidInput, err, "read "+o.signatureFile)
		}
		if prog.Signature, err = decode.Signature(data); err != nil {
			return nil, err
		}
	}
	return prog, nil
}
