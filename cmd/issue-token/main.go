package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Fprintln(os.Stderr, "=== Issue Teacher Token ===")

	// User ID
	fmt.Fprint(os.Stderr, "Enter Teacher User ID: ")
	userInput, _ := reader.ReadString('\n')
	userID, err := strconv.ParseInt(strings.TrimSpace(userInput), 10, 64)
	if err != nil || userID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: a positive user ID is required")
		os.Exit(1)
	}

	// Permissions
	fmt.Fprintln(os.Stderr, "Available permissions:")
	for i, p := range model.AllPermissions {
		fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, p)
	}
	fmt.Fprint(os.Stderr, "Enter permission numbers (comma-separated, blank = all): ")
	permInput, _ := reader.ReadString('\n')
	perms, err := pickPermissions(permInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Signing secret
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "Enter signing secret (blank = JWT_SECRET): ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading secret")
			os.Exit(1)
		}
		if s := strings.TrimSpace(string(secret)); s != "" {
			cfg.JWTSecret = s
		}
	}

	token, err := service.NewAuthService(cfg).GenerateToken(service.TokenTypeTeacher, userID, perms)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "Token for user %d expires in %s\n", userID, cfg.JWTExpiry)
}

// pickPermissions maps a "1,3" menu selection onto permission codes.
func pickPermissions(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		codes := make([]string, len(model.AllPermissions))
		for i, p := range model.AllPermissions {
			codes[i] = string(p)
		}
		return codes, nil
	}

	seen := make(map[int]bool)
	var codes []string
	for _, part := range strings.Split(input, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(model.AllPermissions) {
			return nil, fmt.Errorf("invalid permission number %q", strings.TrimSpace(part))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		codes = append(codes, string(model.AllPermissions[n-1]))
	}
	return codes, nil
}
