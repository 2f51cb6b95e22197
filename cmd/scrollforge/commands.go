package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/pagination"
	"github.com/yourusername/scroll-forge/internal/reader"
	"github.com/yourusername/scroll-forge/internal/session"
	"github.com/yourusername/scroll-forge/internal/theme"
	"github.com/yourusername/scroll-forge/internal/viewer"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	faint = color.New(color.FgHiBlack).SprintFunc()
)

func (a *app) uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a PDF and keep its access token",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return api.NewValidationError("Please select a PDF file")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			inspection, err := api.Inspect(path, data, a.cfg.MaxFileSize)
			if err != nil {
				return err
			}

			d := a.deps(cmd)
			last := -1
			result, err := d.client.UploadDocument(ctx, api.Upload{
				Filename: inspection.Filename,
				Data:     data,
				Progress: func(sent, total int64) {
					if p := api.Percent(sent, total); p != last {
						last = p
						fmt.Fprintf(os.Stderr, "\rUploading %s %3d%%", inspection.Filename, p)
					}
				},
			})
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}

			totalPages := result.TotalPages
			if totalPages <= 0 {
				totalPages = inspection.Pages
			}
			d.resolver.Establish(result.Token, totalPages, inspection.Filename)
			a.logger.WithFields(logrus.Fields{
				"filename":    inspection.Filename,
				"total_pages": totalPages,
			}).Debug("Document converted")

			fmt.Println(green(messageOr(result.Message, "PDF processed successfully")))
			fmt.Printf("%s %d pages\n", bold(inspection.Filename), totalPages)
			fmt.Printf("Access token: %s\n", bold(result.Token))
			fmt.Println(faint("Run `scrollforge read` to start reading."))
			return nil
		},
	}
}

func (a *app) openCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a previously converted document by its access token",
		ArgsUsage: "TOKEN",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d := a.deps(cmd)
			s, err := d.resolver.Adopt(ctx, cmd.Args().First())
			if err != nil {
				return openError(err)
			}
			printSession(s)
			return nil
		},
	}
}

// openError はトークン入力時のエラーを利用者向けの文言に置き換えます。
func openError(err error) error {
	var apiErr *api.Error
	switch {
	case errors.Is(err, api.ErrValidation), errors.Is(err, api.ErrTimeout):
		return err
	case errors.Is(err, api.ErrNotFound):
		return &api.Error{Kind: api.KindNotFound, Message: "Document not found. Please check your access token and try again.", Err: err}
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden:
		return &api.Error{Kind: apiErr.Kind, Status: apiErr.Status, Message: "Access denied. This token may have expired.", Err: err}
	default:
		return &api.Error{Kind: api.KindRequest, Message: "Failed to load document. Please try again.", Err: err}
	}
}

func (a *app) infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the current document",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d := a.deps(cmd)
			s := d.resolver.Resolve(ctx, session.Options{})
			switch s.Status {
			case session.StatusReady:
				printSession(s)
				return nil
			case session.StatusInvalid, session.StatusError:
				return s.Err
			default:
				fmt.Println("No Active Document")
				fmt.Println(faint("Upload a PDF with `scrollforge upload FILE` or open one with `scrollforge open TOKEN`."))
				return nil
			}
		},
	}
}

func printSession(s session.Session) {
	name := s.PDFName
	if name == "" {
		name = "PDF Document"
	}
	fmt.Printf("%s %d pages\n", bold(name), s.TotalPages)
	fmt.Printf("Access token: %s\n", s.Token)
	groups := pagination.Groups(s.TotalPages, pagination.DefaultGroupSize)
	labels := make([]string, 0, len(groups))
	for _, g := range groups {
		labels = append(labels, fmt.Sprintf("%d-%d", g.Start, g.End))
	}
	fmt.Println(faint("Pages: " + strings.Join(labels, ", ")))
}

func (a *app) readCommand() *cli.Command {
	return &cli.Command{
		Name:  "read",
		Usage: "Read the current document in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "page",
				Value: "1",
				Usage: "Page to start on",
			},
			&cli.StringFlag{
				Name:  "zoom",
				Value: viewer.DefaultZoom.String(),
				Usage: "Zoom level between 50% and 200%",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			page, err := strconv.Atoi(strings.TrimSpace(cmd.String("page")))
			if err != nil {
				return api.NewValidationError(viewer.JumpValidationMessage)
			}
			d := a.deps(cmd)
			r := reader.New(d.client, d.resolver, os.Stdin, os.Stdout, a.logger, reader.Options{
				Page:        page,
				Zoom:        viewer.ParseZoom(cmd.String("zoom")),
				LoadTimeout: a.cfg.LoadTimeout,
			})
			return r.Run(ctx)
		},
	}
}

func (a *app) themeCommand() *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Show, search or change the reading theme",
		ArgsUsage: "[NAME]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "search",
				Usage: "List themes matching the query",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d := a.deps(cmd)
			ctrl := theme.NewController(d.store)
			current := ctrl.ResolveInitial()

			if name := cmd.Args().First(); name != "" {
				t, ok := theme.Parse(name)
				if !ok {
					return api.NewValidationError(fmt.Sprintf("Unknown theme %q", name))
				}
				ctrl.Apply(theme.NewClassSet(), t)
				fmt.Printf("Theme set to %s\n", bold(t.DisplayName()))
				return nil
			}

			for _, t := range theme.Search(cmd.String("search")) {
				marker := "  "
				if t == current {
					marker = green("* ")
				}
				fmt.Printf("%s%-10s %s\n", marker, t.String(), faint(t.DisplayName()))
			}
			return nil
		},
	}
}

func (a *app) clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Forget the current document",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a.deps(cmd).resolver.Clear()
			fmt.Println("Document cleared")
			return nil
		},
	}
}

func messageOr(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
