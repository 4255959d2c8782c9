// Package flagx lets several config loaders share os.Args without tripping
// over each other's flags.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// Pick returns the subset of args that belongs to the named flags, in the
// original order. Both "-name value" and "-name=value" forms are kept; a
// following token is only taken as the value when it does not start with '-'.
func Pick(args []string, names ...string) []string {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	picked := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if known[name] {
				picked = append(picked, arg)
			}
			continue
		}

		if !known[arg] {
			continue
		}
		picked = append(picked, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			picked = append(picked, args[i])
		}
	}
	return picked
}

// ConfigFile extracts the config file path given with -c or -config.
// The last occurrence wins; an empty string means no file was requested.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(Pick(args, "-c", "-config", "--config"))

	return path
}
