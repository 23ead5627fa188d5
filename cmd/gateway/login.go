package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/virattt/dexter-sub002/internal/pairing"
)

// buildLoginCmd creates "gateway login": the interactive approval side of
// C8's pairing flow (spec §4.8, §6 CLI). An unpaired sender's first DM
// causes a PairingRequest to be persisted with a random 6-digit code and a
// pairing reply sent back to them; this command lets the operator approve
// that code from the terminal, which removes the pending request so the
// operator can add the now-known phone number to the account's allowFrom.
func buildLoginCmd() *cobra.Command {
	var pairingPath string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Approve a pending pairing request by code",
		Long: `Approve a pending DM pairing request (spec §4.8 DMPairing policy).

When dmPolicy is "pairing", the first message from an unrecognized sender
records a pairing request and replies with a 6-digit code. Run this
command, enter that code, and the sender's phone number is printed so you
can add it to the account's allowFrom in gateway.json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(pairingPath)
		},
	}

	cmd.Flags().StringVar(&pairingPath, "pairing-path", resolvePairingPath(), "Path to the pairing request store")
	return cmd
}

func runLogin(pairingPath string) error {
	store := pairing.NewStore(pairingPath)

	code := readCode()
	if code == "" {
		return fmt.Errorf("gateway login: no code entered")
	}

	phone, err := store.ApproveCode(code)
	if err != nil {
		return fmt.Errorf("gateway login: %w", err)
	}

	fmt.Printf("\nApproved. Add %q to the account's allowFrom in gateway.json to complete pairing.\n", phone)
	printApprovalQR(phone)
	return nil
}

// readCode reads the 6-digit pairing code from a non-echoing terminal
// prompt when stdin is a TTY, falling back to a plain line read otherwise
// (e.g. when piped in scripts or tests).
func readCode() string {
	fmt.Print("Enter pairing code: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(raw))
		}
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// printApprovalQR renders a terminal QR code encoding the approved phone
// number, convenient for operators who'd rather scan a confirmation than
// copy text between the gateway host and a phone.
func printApprovalQR(phone string) {
	qr, err := qrcode.New(phone, qrcode.Medium)
	if err != nil {
		return
	}
	fmt.Println(qr.ToSmallString(false))
}
