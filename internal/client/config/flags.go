package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Only -a, -t,
// -d and -l are looked at, so other components can own the remaining args.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.Pick(args, "-a", "-t", "-d", "-l")

	fs := flag.NewFlagSet("blog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIURL, "a", cfg.APIURL, "base URL of the blog API")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.StateDB, "d", cfg.StateDB, "path of the local state database")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	set := false
	fs.Visit(func(f *flag.Flag) { set = set || f.Name == "t" })
	if set {
		cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	}
	return nil
}
