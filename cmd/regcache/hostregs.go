package main

import (
	"strings"

	"github.com/colorfulnotion/regcache/pvm/x86"
	"github.com/spf13/pflag"
)

// hostRegList is a comma separated list of x86-64 register names.
type hostRegList []string

var _ pflag.Value = (*hostRegList)(nil)

func (l *hostRegList) String() string {
	return strings.Join(*l, ",")
}

func (l *hostRegList) Set(v string) error {
	var out []string
	for _, name := range strings.Split(v, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		r, err := x86.Lookup(name)
		if err != nil {
			return err
		}
		out = append(out, r.Name)
	}
	*l = append(*l, out...)
	return nil
}

func (l *hostRegList) Type() string {
	return "regs"
}
