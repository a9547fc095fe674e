package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retiscan/retiscan/internal/apperr"
	"github.com/retiscan/retiscan/internal/client"
	"github.com/retiscan/retiscan/internal/device"
	"github.com/retiscan/retiscan/internal/models"
)

var (
	screenImage       string
	screenPatient     string
	screenEye         string
	screenPreviewOnly bool
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run one detection: acquire, crop, classify, save",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eye := models.EyeSide(screenEye)
		if !eye.Valid() {
			return fmt.Errorf("--eye must be %q or %q", models.EyeLeft, models.EyeRight)
		}

		c := client.New(
			newAPIClient(cfg),
			device.NewLocalPicker(screenImage),
			device.Grant(),
			device.NewAutoCropper(),
		)
		ctx := cmd.Context()
		if err := c.Initialize(ctx); err != nil {
			return err
		}
		defer c.Dispose()

		img, err := c.CaptureImage(ctx)
		if err != nil {
			if apperr.IsCancelled(err) {
				fmt.Println("Capture cancelled.")
				return nil
			}
			return err
		}
		fmt.Printf("Prepared %d-byte image for upload\n", len(img.Bytes))

		session, err := c.Machine.Start(ctx, screenPatient, eye)
		if err != nil {
			return err
		}
		fmt.Printf("Preview: grade %d (%s), confidence %.2f\n",
			session.Preview.Classification, session.Preview.PredictedLabel, session.Preview.Confidence)

		if screenPreviewOnly {
			if err := c.Machine.Cancel(ctx); err != nil {
				fmt.Printf("Remote cancel failed (local state cleared): %v\n", err)
			}
			fmt.Println("Preview discarded.")
			return nil
		}

		record, err := c.Machine.Save(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Saved detection %s for patient %s\n", record.ID, record.PatientCode)
		return nil
	},
}

func init() {
	screenCmd.Flags().StringVar(&screenImage, "image", "", "path to the fundus image")
	screenCmd.Flags().StringVar(&screenPatient, "patient", "", "patient code")
	screenCmd.Flags().StringVar(&screenEye, "eye", string(models.EyeLeft), "eye side: Left or Right")
	screenCmd.Flags().BoolVar(&screenPreviewOnly, "preview-only", false, "classify but discard instead of saving")
	screenCmd.MarkFlagRequired("image")
	screenCmd.MarkFlagRequired("patient")
}
