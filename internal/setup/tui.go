package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/fundboard/config"
)

// DefaultOutput file the wizard writes to.
const DefaultOutput = "config.gen.yaml"

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

// answers collected by the wizard.
type answers struct {
	apiKey        string
	targetWallet  string
	targetETH     string
	tokenContract string
	tokenGoal     string
	rpcURL        string
	port          string
	priceSource   string
}

// RunTUI launches the terminal configuration wizard and returns the written file.
func RunTUI(output string) (string, error) {
	if output == "" {
		output = DefaultOutput
	}
	a := answers{
		rpcURL:      "https://mainnet.base.org",
		port:        "4000",
		targetETH:   "1",
		priceSource: "binance",
	}

	// step 1: explorer
	screen("STEP 1: BLOCK EXPLORER")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Contributions are read from an Etherscan-compatible API.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Explorer API Key").
				Description("BaseScan / Etherscan key").
				Value(&a.apiKey).
				EchoMode(huh.EchoModePassword).
				Validate(validateRequired),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// step 2: native raise
	screen("STEP 2: ETH RAISE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target Wallet").
				Description("Address receiving contributions").
				Value(&a.targetWallet).
				Validate(validateAddress),
			huh.NewInput().
				Title("ETH Goal").
				Value(&a.targetETH).
				Validate(validateGoal),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// step 3: token raise
	screen("STEP 3: TOKEN COLLECTION")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Token Contract").
				Value(&a.tokenContract).
				Validate(validateAddress),
			huh.NewInput().
				Title("Token Goal").
				Value(&a.tokenGoal).
				Validate(validateGoal),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// step 4: infrastructure
	screen("STEP 4: INFRASTRUCTURE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("RPC URL").
				Value(&a.rpcURL).
				Validate(validateRequired),
			huh.NewInput().
				Title("HTTP Port").
				Value(&a.port).
				Validate(validateRequired),
			huh.NewSelect[string]().
				Title("Primary price source").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&a.priceSource),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// confirmation
	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Target: %s\nETH goal: %s\nToken: %s\nToken goal: %s\nPort: %s\n",
		a.targetWallet, a.targetETH, a.tokenContract, a.tokenGoal, a.port,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := writeConfig(output, a.toConfig()); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting dashboard...", output)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return output, nil
}

func screen(step string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("FUNDBOARD CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

func (a answers) toConfig() config.ConfigTmp {
	sources := []string{"binance", "bybit"}
	if a.priceSource == "bybit" {
		sources = []string{"bybit", "binance"}
	}
	return config.ConfigTmp{
		Port:           a.port,
		ExplorerAPIKey: a.apiKey,
		TargetWallet:   a.targetWallet,
		TargetETH:      a.targetETH,
		TokenContract:  a.tokenContract,
		TokenGoal:      a.tokenGoal,
		RPCURL:         a.rpcURL,
		PriceSources:   sources,
	}
}

func writeConfig(path string, c config.ConfigTmp) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func validateRequired(s string) error {
	if s == "" {
		return fmt.Errorf("value cannot be empty")
	}
	return nil
}

func validateAddress(s string) error {
	if !common.IsHexAddress(s) {
		return fmt.Errorf("must be a 0x-prefixed hex address")
	}
	return nil
}

func validateGoal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}
