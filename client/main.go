// Copyright (C) 2025 Christian Rößner
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/croessner/secenh/server/ident"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

// clientFromCtx builds the API client from the global flags.
func clientFromCtx(ctx *cli.Context) *apiClient {
	return newAPIClient(
		ctx.String("server"),
		ctx.String("username"),
		ctx.String("password"),
		ctx.Duration("timeout"),
	)
}

// requireArgs returns the positional arguments, or an error when none are
// given.
func requireArgs(ctx *cli.Context, noun string) ([]string, error) {
	args := ctx.Args().Slice()

	if len(args) == 0 {
		return nil, cli.Exit(fmt.Sprintf("at least one %s is required", noun), 2)
	}

	return args, nil
}

// checkPublicIPs rejects arguments that are not public IP addresses before
// anything goes over the wire.
func checkPublicIPs(ips []string) error {
	for _, ip := range ips {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return cli.Exit(fmt.Sprintf("%q is not an IP address", ip), 2)
		}

		if !ident.IsPublicAddr(addr) {
			return cli.Exit(fmt.Sprintf("%q is not a public IP address", ip), 2)
		}
	}

	return nil
}

// printBanResult prints the server's applied and skipped lists. An empty
// applied list yields a non-zero exit code.
func printBanResult(result *banResult, verb string) error {
	for _, value := range result.Applied {
		color.Green("%s: %s", verb, value)
	}

	for _, value := range result.Skipped {
		color.Yellow("skipped: %s", value)
	}

	if len(result.Applied) == 0 {
		return cli.Exit("nothing was "+verb, 1)
	}

	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "secenhctl",
		Usage:   "administer a running secenh server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "base URL of the server",
				Value:   "http://localhost:9443",
				EnvVars: []string{"SECENHCTL_SERVER"},
			},
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "admin username",
				EnvVars: []string{"SECENHCTL_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "admin password",
				EnvVars: []string{"SECENHCTL_PASSWORD"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "request timeout",
				Value:   30 * time.Second,
				EnvVars: []string{"SECENHCTL_TIMEOUT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "ban",
				Usage: "add ban entries",
				Subcommands: []*cli.Command{
					{
						Name:      "ip",
						Usage:     "ban one or more public IP addresses",
						ArgsUsage: "IP...",
						Flags: []cli.Flag{
							&cli.Int64Flag{
								Name:  "ttl",
								Usage: "ban duration in seconds",
								Value: 86400,
							},
						},
						Action: func(ctx *cli.Context) error {
							ips, err := requireArgs(ctx, "IP address")
							if err != nil {
								return err
							}

							if err := checkPublicIPs(ips); err != nil {
								return err
							}

							result, err := clientFromCtx(ctx).BanIPs(ctx.Context, ips, ctx.Int64("ttl"))
							if err != nil {
								return err
							}

							return printBanResult(result, "banned")
						},
					},
					{
						Name:      "ua",
						Usage:     "ban one or more exact User-Agent strings",
						ArgsUsage: "USER-AGENT...",
						Flags: []cli.Flag{
							&cli.Int64Flag{
								Name:  "ttl",
								Usage: "ban duration in seconds",
								Value: 86400,
							},
						},
						Action: func(ctx *cli.Context) error {
							userAgents, err := requireArgs(ctx, "User-Agent")
							if err != nil {
								return err
							}

							result, err := clientFromCtx(ctx).BanUAs(ctx.Context, userAgents, ctx.Int64("ttl"))
							if err != nil {
								return err
							}

							return printBanResult(result, "banned")
						},
					},
				},
			},
			{
				Name:  "unban",
				Usage: "remove ban entries",
				Subcommands: []*cli.Command{
					{
						Name:      "ip",
						Usage:     "unban one or more IP addresses",
						ArgsUsage: "IP...",
						Action: func(ctx *cli.Context) error {
							ips, err := requireArgs(ctx, "IP address")
							if err != nil {
								return err
							}

							result, err := clientFromCtx(ctx).UnbanIPs(ctx.Context, ips)
							if err != nil {
								return err
							}

							return printBanResult(result, "unbanned")
						},
					},
					{
						Name:      "ua",
						Usage:     "unban one or more User-Agent strings",
						ArgsUsage: "USER-AGENT...",
						Action: func(ctx *cli.Context) error {
							userAgents, err := requireArgs(ctx, "User-Agent")
							if err != nil {
								return err
							}

							result, err := clientFromCtx(ctx).UnbanUAs(ctx.Context, userAgents)
							if err != nil {
								return err
							}

							return printBanResult(result, "unbanned")
						},
					},
				},
			},
			{
				Name:  "is-banned",
				Usage: "query ban state",
				Subcommands: []*cli.Command{
					{
						Name:      "ip",
						Usage:     "query the ban state of an IP address",
						ArgsUsage: "IP",
						Action: func(ctx *cli.Context) error {
							if ctx.NArg() != 1 {
								return cli.Exit("exactly one IP address is required", 2)
							}

							status, err := clientFromCtx(ctx).IsIPBanned(ctx.Context, ctx.Args().First())
							if err != nil {
								return err
							}

							return printBanStatus(status)
						},
					},
					{
						Name:      "ua",
						Usage:     "query the ban state of a User-Agent string",
						ArgsUsage: "USER-AGENT",
						Action: func(ctx *cli.Context) error {
							if ctx.NArg() != 1 {
								return cli.Exit("exactly one User-Agent is required", 2)
							}

							status, err := clientFromCtx(ctx).IsUABanned(ctx.Context, ctx.Args().First())
							if err != nil {
								return err
							}

							return printBanStatus(status)
						},
					},
				},
			},
			{
				Name:      "ipapi",
				Usage:     "geolocate one or more IP addresses",
				ArgsUsage: "IP...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "flush cached records before resolving",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "output format: table, csv, yaml or json",
						Value:   "table",
					},
					&cli.StringFlag{
						Name:  "fields",
						Usage: "comma-separated field list for table and csv output",
					},
				},
				Action: func(ctx *cli.Context) error {
					ips, err := requireArgs(ctx, "IP address")
					if err != nil {
						return err
					}

					records, err := clientFromCtx(ctx).Geolocate(ctx.Context, ips, ctx.Bool("force"))
					if err != nil {
						return err
					}

					if len(records) == 0 {
						return cli.Exit("no geolocation records found", 1)
					}

					return writeRecords(ctx.App.Writer, records, ctx.String("format"), ctx.String("fields"))
				},
			},
			{
				Name:  "loginlog",
				Usage: "show the most recent login attempts",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "maximum number of entries",
						Value:   50,
					},
				},
				Action: func(ctx *cli.Context) error {
					entries, err := clientFromCtx(ctx).LoginLog(ctx.Context, ctx.Int64("limit"))
					if err != nil {
						return err
					}

					return writeLoginLog(ctx.App.Writer, entries)
				},
			},
		},
	}
}

// printBanStatus prints the ban state and maps it onto the exit code:
// zero when banned, one when not.
func printBanStatus(status *banStatus) error {
	if status.Banned {
		color.Red("%s is banned", status.Value)

		return nil
	}

	color.Green("%s is not banned", status.Value)

	return cli.Exit("", 1)
}
