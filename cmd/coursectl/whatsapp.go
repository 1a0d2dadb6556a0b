package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coursemarket_echo/internal/config"
	"coursemarket_echo/internal/services"
)

func whatsappTestCmd() *cobra.Command {
	var phone, msg string

	cmd := &cobra.Command{
		Use:   "whatsapp-test",
		Short: "Send a test WhatsApp message through WAHA",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.WahaBaseURL == "" {
				return fmt.Errorf("WAHA_BASE_URL is not set")
			}

			service := services.NewWahaService(cfg.WahaBaseURL, cfg.WahaAPIKey)
			fmt.Fprintf(cmd.OutOrStdout(), "Sending message to %s: %s\n", phone, msg)
			if err := service.SendMessage(cmd.Context(), phone, msg); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Message sent successfully!")
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Phone number, e.g. 5511999990000")
	cmd.Flags().StringVar(&msg, "msg", "Test message from coursectl", "Message body")
	cmd.MarkFlagRequired("phone")

	return cmd
}
