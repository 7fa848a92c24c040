package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aveline-ai/companiond/internal/character"
	"github.com/aveline-ai/companiond/internal/config"
	"github.com/aveline-ai/companiond/pkg/audio"
)

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "Validate and list the ambience catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		catalog, err := character.LoadCatalog(cfg.AmbienceCatalogPath)
		if err != nil {
			return err
		}

		tracks := catalog.Tracks()
		if len(tracks) == 0 {
			fmt.Println("catalog is empty")
			return nil
		}

		broken := 0
		for _, track := range tracks {
			data, err := os.ReadFile(track.Path)
			if err != nil {
				broken++
				fmt.Printf("%-16s BROKEN  %v\n", track.Key, err)
				continue
			}
			pcm, sampleRate, channels, err := audio.DecodeWAV(data)
			if err != nil {
				broken++
				fmt.Printf("%-16s BROKEN  %v\n", track.Key, err)
				continue
			}
			frames := len(pcm) / channels
			duration := time.Duration(frames) * time.Second / time.Duration(sampleRate)
			fmt.Printf("%-16s %6d Hz  %dch  %8s  %s\n",
				track.Key, sampleRate, channels, duration.Round(time.Millisecond), track.Description)
		}

		if broken > 0 {
			return fmt.Errorf("%d of %d tracks failed to decode", broken, len(tracks))
		}
		return nil
	},
}
