package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retiscan/retiscan/internal/client"
	"github.com/retiscan/retiscan/internal/device"
	"github.com/retiscan/retiscan/internal/models"
)

var (
	patientCode   string
	patientName   string
	patientAge    int
	patientGender string
	patientRegion string
	patientID     string
)

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "Manage the patient registry",
}

func newPlainClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c := client.New(newAPIClient(cfg), device.NewLocalPicker(""), device.Grant(), device.NewAutoCropper())
	if err := c.Initialize(cmd.Context()); err != nil {
		return nil, err
	}
	return c, nil
}

var patientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered patients",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPlainClient(cmd)
		if err != nil {
			return err
		}
		defer c.Dispose()

		patients, err := c.PatientList(cmd.Context(), false)
		if err != nil {
			return err
		}
		if len(patients) == 0 {
			fmt.Println("No patients registered.")
		}
		for _, p := range patients {
			fmt.Printf("%-12s %-24s age %-3d %-8s region %s  (%s)\n",
				p.Code, p.Name, p.Age, p.Gender, p.RegionCode, p.ID)
		}
		return nil
	},
}

var patientsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a patient",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPlainClient(cmd)
		if err != nil {
			return err
		}
		defer c.Dispose()

		created, err := c.CreatePatient(cmd.Context(), models.PatientRecord{
			Code:       patientCode,
			Name:       patientName,
			Age:        patientAge,
			Gender:     patientGender,
			RegionCode: patientRegion,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s as %s\n", created.Name, created.Code)
		return nil
	},
}

var patientsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a patient by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newPlainClient(cmd)
		if err != nil {
			return err
		}
		defer c.Dispose()

		if err := c.DeletePatient(cmd.Context(), patientID); err != nil {
			return err
		}
		fmt.Println("Patient deleted.")
		return nil
	},
}

func init() {
	patientsCreateCmd.Flags().StringVar(&patientCode, "code", "", "patient code")
	patientsCreateCmd.Flags().StringVar(&patientName, "name", "", "patient name")
	patientsCreateCmd.Flags().IntVar(&patientAge, "age", 0, "patient age")
	patientsCreateCmd.Flags().StringVar(&patientGender, "gender", "", "patient gender")
	patientsCreateCmd.Flags().StringVar(&patientRegion, "region", "", "administrative region code")
	patientsCreateCmd.MarkFlagRequired("code")
	patientsCreateCmd.MarkFlagRequired("name")

	patientsDeleteCmd.Flags().StringVar(&patientID, "id", "", "patient id")
	patientsDeleteCmd.MarkFlagRequired("id")

	patientsCmd.AddCommand(patientsListCmd)
	patientsCmd.AddCommand(patientsCreateCmd)
	patientsCmd.AddCommand(patientsDeleteCmd)
}
