package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "full":
		fullCmd(apiURL, args)
	case "history":
		historyCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Adherence Simulator - Development tool for exercising the medication API

USAGE:
  simulator <command> [options]

COMMANDS:
  full      Create a patient, add medications, and walk through dose recording
  history   Print the dose history for an account
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Uses the bootstrap admin to create a fresh patient account
  simulator full --admin-email=admin@example.com --admin-password=changeme

  # Show what a patient has taken
  simulator history --email=patient@example.com --password=patient123`)
}

func fullCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("full", flag.ExitOnError)
	adminEmail := fs.String("admin-email", "admin@example.com", "Admin account used to create the patient")
	adminPassword := fs.String("admin-password", "", "Admin password")
	patientPassword := fs.String("patient-password", "patient123", "Password for the created patient")
	fs.Parse(args)

	if *adminPassword == "" {
		fmt.Println("Error: --admin-password is required")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)

	fmt.Println("=== Adherence Simulator: Full Flow ===")
	fmt.Println()

	// 1. Admin creates a patient
	fmt.Print("Logging in as admin... ")
	admin, err := client.Login(*adminEmail, *adminPassword)
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK (role: %s)\n", admin.User.Role)

	patientEmail := fmt.Sprintf("patient_%d@example.com", time.Now().UnixNano()%100000)
	fmt.Print("Creating patient account... ")
	if _, err := client.CreateUser(admin.AccessToken, patientEmail, *patientPassword, "user"); err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK (%s)\n", patientEmail)

	patient, err := client.Login(patientEmail, *patientPassword)
	if err != nil {
		fmt.Printf("Failed to log in as patient: %v\n", err)
		os.Exit(1)
	}
	token := patient.AccessToken

	// 2. One medication whose window covers the whole day, one that never does
	fmt.Println()
	fmt.Println("Adding medications:")
	always, err := client.CreateMedication(token, "Multivitamin", "1 tablet", "00:00", "23:59")
	if err != nil {
		fmt.Printf("  FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  %s %s [%s-%s]\n", always.Name, always.Dosage, always.StartTime, always.EndTime)

	never, err := client.CreateMedication(token, "Night drops", "2 drops", "23:00", "01:00")
	if err != nil {
		fmt.Printf("  FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  %s %s [%s-%s] (overnight, never within window)\n", never.Name, never.Dosage, never.StartTime, never.EndTime)

	meds, err := client.ListMedications(token)
	if err != nil {
		fmt.Printf("Failed to list medications: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println("Window state:")
	for _, m := range meds {
		fmt.Printf("  %-14s %s\n", m.Name, m.WindowState)
	}

	// 3. Recording inside the window succeeds directly
	fmt.Println()
	fmt.Print("Recording dose inside window... ")
	if _, err := client.RecordDose(token, always.ID, false); err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")

	// 4. Outside the window the first attempt is advisory
	fmt.Print("Recording dose outside window... ")
	_, err = client.RecordDose(token, never.ID, false)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != "out_of_window_unconfirmed" {
		fmt.Printf("UNEXPECTED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("needs confirmation")

	fmt.Print("Confirming... ")
	if _, err := client.RecordDose(token, never.ID, true); err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")

	// 5. Back-fill yesterday's missed entry
	fmt.Print("Back-filling yesterday's dose... ")
	if _, err := client.RecordManualDose(token, always.ID, time.Now().Add(-24*time.Hour), "logged late"); err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")

	fmt.Println()
	printHistory(client, token)

	fmt.Println()
	fmt.Println("=========================================")
	fmt.Println("  SIMULATION COMPLETE")
	fmt.Println("=========================================")
	fmt.Printf("  Patient:  %s\n", patientEmail)
	fmt.Printf("  Password: %s\n", *patientPassword)
	fmt.Println()
}

func historyCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	email := fs.String("email", "", "Account email (required)")
	password := fs.String("password", "", "Account password (required)")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: --email and --password are required")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)
	auth, err := client.Login(*email, *password)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	printHistory(client, auth.AccessToken)
}

func printHistory(client *APIClient, token string) {
	entries, err := client.History(token)
	if err != nil {
		fmt.Printf("Failed to load history: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("History (%d doses):\n", len(entries))
	for _, e := range entries {
		name := "(deleted medication)"
		if e.Medication != nil {
			name = e.Medication.Name + " " + e.Medication.Dosage
		}
		notes := ""
		if e.Dose.Notes != nil {
			notes = " - " + *e.Dose.Notes
		}
		fmt.Printf("  %s  %s%s\n", e.Dose.TakenAt.Local().Format("2006-01-02 15:04"), name, notes)
	}
}
