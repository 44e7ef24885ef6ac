/**
 * @description
 * Script to soft-disable ledger accounts by their account ID.
 * This script allows you to clean up test accounts from a development
 * environment so the ledger rejects them without deleting their receipt
 * history.
 *
 * Usage:
 *   go run disable-test-account.go <account-id>
 *
 * Example:
 *   go run disable-test-account.go 6f1f8c0a-6f3f-4be0-b1a5-b39f713c9a86
 *
 * @dependencies
 * - Go 1.19+
 * - Environment variables: INTERNAL_API_KEY (or LEDGER_SERVICE_INTERNAL_API_KEY), LEDGER_SERVICE_URL
 */

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// LedgerError represents an error response from the ledger-service API
type LedgerError struct {
	Error string `json:"error"`
}

// AccountInfo represents basic account information for display
type AccountInfo struct {
	ID               string `json:"id"`
	Balance          int64  `json:"balance"`
	UnlimitedFunds   bool   `json:"unlimited_funds"`
	LifetimeEarnings int64  `json:"lifetime_earnings"`
	Verified         bool   `json:"verified"`
	Status           string `json:"status"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: go run disable-test-account.go <account-id>")
		fmt.Println("Example: go run disable-test-account.go 6f1f8c0a-6f3f-4be0-b1a5-b39f713c9a86")
		os.Exit(1)
	}

	accountID := os.Args[1]

	// Load environment variables from .env file if it exists
	loadEnvFile(".env")

	// Get environment variables
	apiKey := os.Getenv("INTERNAL_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("LEDGER_SERVICE_INTERNAL_API_KEY")
	}
	baseURL := os.Getenv("LEDGER_SERVICE_URL")

	if apiKey == "" {
		log.Fatal("INTERNAL_API_KEY environment variable is required")
	}

	if baseURL == "" {
		baseURL = "http://localhost:8084" // Default to a local server
		fmt.Println("Using default local URL:", baseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// First, get account info to confirm the disable
	fmt.Printf("Fetching account information for ID: %s\n", accountID)
	accountInfo, err := getAccountInfo(ctx, baseURL, apiKey, accountID)
	if err != nil {
		log.Fatalf("Failed to fetch account info: %v", err)
	}

	fmt.Printf("Account Details:\n")
	fmt.Printf("  ID: %s\n", accountInfo.ID)
	fmt.Printf("  Balance: %d\n", accountInfo.Balance)
	fmt.Printf("  Lifetime Earnings: %d\n", accountInfo.LifetimeEarnings)
	fmt.Printf("  Unlimited Funds: %t\n", accountInfo.UnlimitedFunds)
	fmt.Printf("  Verified: %t\n", accountInfo.Verified)
	fmt.Printf("  Status: %s\n", accountInfo.Status)

	if accountInfo.Status == "disabled" {
		fmt.Println("\nAccount is already disabled, nothing to do.")
		os.Exit(0)
	}

	// Confirm the disable
	fmt.Printf("\nAre you sure you want to disable this account? (yes/no): ")
	var confirmation string
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		fmt.Println("Disable cancelled.")
		os.Exit(0)
	}

	// Disable the account
	fmt.Printf("Disabling account %s...\n", accountID)
	err = disableAccount(ctx, baseURL, apiKey, accountID)
	if err != nil {
		log.Fatalf("Failed to disable account: %v", err)
	}

	fmt.Printf("Successfully disabled account %s\n", accountID)
	fmt.Println("The ledger will reject transfers involving this account from now on.")
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // File doesn't exist, that's okay
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			// Remove quotes if present
			value = strings.Trim(value, "\"'")
			os.Setenv(key, value)
		}
	}
}

// getAccountInfo fetches account information before the disable
func getAccountInfo(ctx context.Context, baseURL, apiKey, accountID string) (*AccountInfo, error) {
	url := fmt.Sprintf("%s/internal/accounts/%s", baseURL, accountID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Internal-API-Key", apiKey)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ledgerErr LedgerError
		if err := json.Unmarshal(body, &ledgerErr); err == nil && ledgerErr.Error != "" {
			return nil, fmt.Errorf("ledger API error: %s", ledgerErr.Error)
		}
		return nil, fmt.Errorf("ledger API error with status %d: %s", resp.StatusCode, string(body))
	}

	var accountInfo AccountInfo
	if err := json.Unmarshal(body, &accountInfo); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &accountInfo, nil
}

// disableAccount soft-disables the account through the internal API
func disableAccount(ctx context.Context, baseURL, apiKey, accountID string) error {
	url := fmt.Sprintf("%s/internal/accounts/%s/disable", baseURL, accountID)

	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Internal-API-Key", apiKey)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ledgerErr LedgerError
		if err := json.Unmarshal(body, &ledgerErr); err == nil && ledgerErr.Error != "" {
			return fmt.Errorf("ledger API error: %s", ledgerErr.Error)
		}
		return fmt.Errorf("ledger API error with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
