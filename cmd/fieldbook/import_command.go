package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldbook/internal/capture"
	"fieldbook/internal/config"
	"fieldbook/internal/geo"
	"fieldbook/internal/identify"
	"fieldbook/internal/importer"
	"fieldbook/internal/notifications"
	"fieldbook/internal/store"
	"fieldbook/internal/workflow"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Bring sightings into the logbook",
	}

	importCmd.AddCommand(newImportPhotosCommand(ctx))
	importCmd.AddCommand(newImportCSVCommand(ctx))

	return importCmd
}

func newImportPhotosCommand(ctx *commandContext) *cobra.Command {
	var noIdentify bool

	cmd := &cobra.Command{
		Use:   "photos <file-or-dir>...",
		Short: "Review a photo batch and record observations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photos, err := loadPhotos(args)
			if err != nil {
				return err
			}
			if len(photos) == 0 {
				return fmt.Errorf("no photos found in %s", strings.Join(args, ", "))
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				normalizer, err := ctx.newNormalizer()
				if err != nil {
					return err
				}

				var identifier identify.Identifier
				if !noIdentify {
					client, err := identify.New(cfg)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Identification disabled: %v\n", err)
					} else {
						identifier = client
					}
				}

				session := workflow.NewSession(cfg, st, nil, identifier, normalizer,
					ctx.newReconciler(st), notifications.NewService(cfg), ctx.ensureLogger())
				if err := session.Begin(cmd.Context(), photos); err != nil {
					return err
				}
				return runReviewLoop(cmd, session)
			})
		},
	}

	cmd.Flags().BoolVar(&noIdentify, "no-identify", false, "Skip AI identification and enter species manually")
	return cmd
}

func newImportCSVCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "csv <file>",
		Short: "Import a CSV sighting log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer file.Close()

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				normalizer, err := ctx.newNormalizer()
				if err != nil {
					return err
				}
				imp := importer.New(cfg, st, normalizer, ctx.newReconciler(st),
					notifications.NewService(cfg), ctx.ensureLogger())
				result, err := imp.Import(cmd.Context(), file)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d rows (%d skipped as duplicates) into %d outings\n",
					result.Imported, result.Skipped, result.Outings)
				if result.NewOutings > 0 {
					fmt.Fprintf(out, "Created %d new outings\n", result.NewOutings)
				}
				for _, name := range result.NewSpecies {
					fmt.Fprintf(out, "New species: %s\n", name)
				}
				return nil
			})
		},
	}
}

var photoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
}

// loadPhotos expands file and directory arguments into a photo batch,
// reading optional "<photo>.json" sidecars for capture metadata.
func loadPhotos(args []string) ([]workflow.Photo, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if photoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	sort.Strings(paths)

	photos := make([]workflow.Photo, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read photo %s: %w", path, err)
		}
		meta, err := loadSidecar(path + ".json")
		if err != nil {
			return nil, err
		}
		photos = append(photos, workflow.Photo{
			Name: filepath.Base(path),
			Data: data,
			Meta: meta,
		})
	}
	return photos, nil
}

type sidecar struct {
	CapturedAt string   `json:"captured_at"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
}

func loadSidecar(path string) (*capture.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sidecar %s: %w", path, err)
	}

	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", path, err)
	}

	meta := &capture.Metadata{}
	if strings.TrimSpace(sc.CapturedAt) != "" {
		at, err := time.Parse(time.RFC3339, sc.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("sidecar %s: captured_at: %w", path, err)
		}
		meta.CapturedAt = &at
	}
	if sc.Lat != nil && sc.Lon != nil {
		meta.Location = &geo.Point{Lat: *sc.Lat, Lon: *sc.Lon}
	}
	return meta, nil
}
