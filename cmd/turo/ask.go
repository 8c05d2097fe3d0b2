package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelpath-dev/TuroAISTT/internal/bootstrap"
	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

var (
	askTemplateFlag       string
	askTranscriptFileFlag string
	askOrganFlag          string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant one question about a transcript",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var transcript string
		if askTranscriptFileFlag != "" {
			data, err := os.ReadFile(askTranscriptFileFlag)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			transcript = string(data)
		}

		services, err := bootstrap.Build(newConsoleSink(cmd.ErrOrStderr()), nil, overrides())
		if err != nil {
			return err
		}

		organ := askOrganFlag
		if organ == "" {
			organ = domain.TemplatePrefix(askTemplateFlag)
		}
		reply, err := services.Pipeline.Chat(cmd.Context(), domain.ChatRequest{
			Message: strings.Join(args, " "),
			Context: domain.ChatContext{
				Transcript: transcript,
				Organ:      organ,
				TemplateID: askTemplateFlag,
			},
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askTemplateFlag, "template", "t", "", "Template id the question refers to")
	askCmd.Flags().StringVar(&askTranscriptFileFlag, "transcript-file", "", "File holding the transcript to discuss")
	askCmd.Flags().StringVar(&askOrganFlag, "organ", "", "Body part context (defaults to the template's region)")
}
