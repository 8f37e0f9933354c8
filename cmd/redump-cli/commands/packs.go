package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"redumparchive/internal/crawler"
	"redumparchive/internal/scrapers/redump"

	"github.com/spf13/cobra"
)

var (
	packTypes      *[]string
	packSystems    *[]string
	packSubfolders *bool
)

func init() {
	packTypes = packsCmd.Flags().StringSlice("type", []string{redump.PackDat.Name}, "Pack types to download (cues, dat, dkeys, gdi, keys, lsd, sbi).")
	packSystems = packsCmd.Flags().StringSlice("system", nil, "Systems to download packs for, defaults to every system.")
	packSubfolders = packsCmd.Flags().Bool("subfolders", false, "Place each pack in a folder named after its system.")
	rootCmd.AddCommand(packsCmd)
}

var packsCmd = &cobra.Command{
	Use:   "packs [--type <type>...] [--system <system>...] [--subfolders]",
	Short: "Downloads per-system packs that are not already present.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := crawler.PackRequest{Subfolders: *packSubfolders}
		for _, name := range *packTypes {
			pack, err := redump.LookupPackType(name)
			if err != nil {
				return err
			}
			req.Types = append(req.Types, pack)
		}
		for _, name := range *packSystems {
			system, err := redump.LookupSystem(name)
			if err != nil {
				return err
			}
			req.Systems = append(req.Systems, system)
		}
		err := req.Validate()
		if err != nil {
			return err
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if *listOnly {
			systems := req.Systems
			if len(systems) == 0 {
				systems = redump.Systems
			}
			for _, pack := range req.Types {
				for _, system := range systems {
					if system.Offers(pack) {
						fmt.Fprintln(os.Stdout, s.client.Endpoints().Pack(pack, system))
					}
				}
			}
			return nil
		}

		ctx := cmd.Context()
		written, err := s.crawler(logProgress, nil).Packs(ctx, req)
		if err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		if err != nil {
			slog.Warn("pack download interrupted")
		}
		renderPacks(os.Stdout, written)
		return nil
	},
}
