package img

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"github.com/myrjola/whodunit/internal/config"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/mystery"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "img",
	Title: "Image operations",
}

func init() {
	Generate.Flags().String("out", "./out.png", "path to generated image file")
	Generate.Flags().String("room", "", "generate the background of a room, e.g. basement")
}

// RoomPrompt describes the background image of room.
func RoomPrompt(room mystery.Room) string {
	return fmt.Sprintf("A moody, cinematic illustration of %s in a student house the night after a chaotic college "+
		"party where %s was murdered. Dim light, scattered party leftovers, no people, no text.",
		room.Label(), mystery.Victim)
}

// prompt picks the image prompt from the --room flag or the positional arguments.
func prompt(roomSlug string, args []string) (string, error) {
	if roomSlug == "" {
		if len(args) == 0 {
			return "", errors.New("give a prompt or --room")
		}
		return strings.Join(args, " "), nil
	}
	room, ok := mystery.ParseRoom(roomSlug)
	if !ok {
		return "", errors.New("unknown room", slog.String("room", roomSlug))
	}
	return RoomPrompt(room), nil
}

var Generate = &cobra.Command{
	Use:     "gen [prompt]",
	GroupID: "img",
	Short:   "Generate image",
	Long:    `Generates image with Dall-E. Use --room to render the background of one of the game's rooms.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roomSlug, err := cmd.Flags().GetString("room")
		if err != nil {
			return errors.Wrap(err, "invalid room flag")
		}
		p, err := prompt(roomSlug, args)
		if err != nil {
			return err
		}
		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return errors.Wrap(err, "invalid out flag")
		}

		cfg, err := config.Load(nil)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			clientConfig.BaseURL = strings.TrimSuffix(cfg.OpenAIBaseURL, "/")
		}
		c := openai.NewClientWithConfig(clientConfig)

		request := openai.ImageRequest{ //nolint:exhaustruct // API defaults
			Model:          openai.CreateImageModelDallE3,
			Prompt:         p,
			Size:           openai.CreateImageSize1024x1024,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
			N:              1,
		}

		response, err := c.CreateImage(cmd.Context(), request)
		if err != nil {
			return errors.Wrap(err, "create image")
		}
		if len(response.Data) == 0 {
			return errors.New("no image in response")
		}

		imgBytes, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
		if err != nil {
			return errors.Wrap(err, "base64 decode")
		}

		imgData, err := png.Decode(bytes.NewReader(imgBytes))
		if err != nil {
			return errors.Wrap(err, "png decode")
		}

		file, err := os.Create(outPath)
		if err != nil {
			return errors.Wrap(err, "create file")
		}
		defer func(file *os.File) {
			_ = file.Close()
		}(file)

		if err = png.Encode(file, imgData); err != nil {
			return errors.Wrap(err, "png encode")
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "The image was saved as %s\n", outPath)
		return nil
	},
}
