package main

import (
	"os"

	"github.com/ghetzel/cli"
	"github.com/ghetzel/go-stockutil/log"
	"github.com/ruby-sh/rubyshd"
)

func main() {
	var app = cli.NewApp()
	app.Name = rubyshd.ApplicationName
	app.Usage = rubyshd.ApplicationSummary
	app.Version = rubyshd.ApplicationVersion

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   `log-level, L`,
			Usage:  `Level of log output verbosity`,
			Value:  `info`,
			EnvVar: `LOGLEVEL`,
		},
		cli.StringFlag{
			Name:  `address, a`,
			Usage: `The [address]:port the TLS listener binds, overriding TLS_LISTEN_BIND`,
		},
	}

	app.Before = func(c *cli.Context) error {
		log.SetLevelString(c.String(`log-level`))
		return nil
	}

	app.Action = func(c *cli.Context) {
		config, err := rubyshd.NewConfigFromEnv()
		log.FatalIf(err)

		if address := c.String(`address`); address != `` {
			config.TLSListenBind = address
		}

		log.FatalIf(config.Validate())

		server, err := rubyshd.NewServer(rubyshd.NewServerContext(config))
		log.FatalIf(err)
		log.FatalIf(server.ListenAndServe())
	}

	app.Run(os.Args)
}
