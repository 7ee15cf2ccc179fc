// Package setup runs the terminal wizard that writes the console config.
package setup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/xrpdesk/config"
	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

// DefaultOutput file the wizard writes to.
const DefaultOutput = "config.gen.yaml"

const (
	mainnetURL = "wss://xrplcluster.com"
	testnetURL = "wss://s.altnet.rippletest.net:51233"
	customURL  = "custom"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

func step(title string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("XRPDESK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(title))
}

// RunTUI launches the wizard and writes the result to output.
func RunTUI(output string) error {
	if output == "" {
		output = DefaultOutput
	}

	var (
		network         = mainnetURL
		nodeURL         string
		account         string
		pair            string
		pollIntervalStr = config.DefaultPollInterval.String()
		tradeLimitStr   = strconv.Itoa(config.DefaultTradeLimit)
		bookDepthStr    = strconv.Itoa(config.DefaultBookDepth)
		webAddr         = config.DefaultWebAddr
		domains         string
		confirm         bool
	)

	step("STEP 1: LEDGER NODE")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Pick the node the console talks to.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Network").
				Options(
					huh.NewOption("Mainnet ("+mainnetURL+")", mainnetURL),
					huh.NewOption("Testnet ("+testnetURL+")", testnetURL),
					huh.NewOption("Custom node", customURL),
				).
				Value(&network),
		),
	).Run()
	if err != nil {
		return err
	}

	nodeURL = network
	if network == customURL {
		nodeURL = "wss://"
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Node URL").
					Description("websocket endpoint, ws:// or wss://").
					Value(&nodeURL).
					Validate(validateNodeURL),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	step("STEP 2: ACCOUNT AND PAIR")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account").
				Description("Classic address whose offers and fills are tracked (optional)").
				Value(&account).
				Validate(validateAccount),
			huh.NewInput().
				Title("Pair").
				Description("BASE[.ISSUER]_QUOTE[.ISSUER], e.g. XRP_USD.rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq (optional)").
				Value(&pair).
				Validate(validatePair),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 3: REFRESH")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Poll Interval").
				Description("Duration string (e.g. 4s, 10s)").
				Value(&pollIntervalStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Trade History Limit").
				Value(&tradeLimitStr).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Order Book Depth").
				Description("Offers fetched per book side").
				Value(&bookDepthStr).
				Validate(validatePositiveInt),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 4: WEB CONSOLE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Value(&webAddr),
			huh.NewInput().
				Title("TLS Domains").
				Description("Comma separated, empty serves plain HTTP").
				Value(&domains),
		),
	).Run()
	if err != nil {
		return err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Node: %s\nAccount: %s\nPair: %s\nInterval: %s\nWeb: %s\n",
		nodeURL, orNone(account), orNone(pair), pollIntervalStr, webAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	pollInterval, _ := time.ParseDuration(pollIntervalStr)
	tmp := config.ConfigTmp{
		NodeURL:       nodeURL,
		Account:       strings.TrimSpace(account),
		Pair:          strings.TrimSpace(pair),
		WebAddr:       webAddr,
		TLSDomains:    splitDomains(domains),
		PollInterval:  pollInterval,
		TradeLimitStr: tradeLimitStr,
		BookDepthStr:  bookDepthStr,
	}
	if err := config.Save(output, tmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", output)))
	return nil
}

func validateNodeURL(s string) error {
	if !strings.HasPrefix(s, "ws://") && !strings.HasPrefix(s, "wss://") {
		return errors.New("must start with ws:// or wss://")
	}
	if strings.TrimPrefix(strings.TrimPrefix(s, "wss://"), "ws://") == "" {
		return errors.New("host is missing")
	}
	return nil
}

// validateAccount accepts an empty value or something shaped like a classic address.
func validateAccount(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "r") || len(s) < 25 || len(s) > 35 {
		return errors.New("must be a classic address starting with r")
	}
	return nil
}

func validatePair(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	_, err := domain.ParsePair(s)
	return err
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return errors.New("must be a positive integer")
	}
	return nil
}

func splitDomains(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
