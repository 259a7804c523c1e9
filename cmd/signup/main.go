package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
	"github.com/spec-kit/marketplace-accounts/internal/wizard"
)

func main() {
	accountType := flag.String("type", "user", "account type: user or pro")
	apiURL := flag.String("api", "", "accounts API base URL (defaults to APP_HOST:APP_PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.Logger.Level = "warn"
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	base := *apiURL
	if base == "" {
		base = "http://127.0.0.1:" + cfg.App.Port
	}
	client := wizard.NewClient(wizard.ClientConfig{
		BaseURL:      base,
		Origin:       clientOrigin(cfg.Guard),
		MarkerHeader: cfg.Guard.MarkerHeader,
		MarkerValue:  cfg.Guard.MarkerValue,
	})

	t := domain.AccountType(strings.ToLower(*accountType))
	if t != domain.AccountTypePro && t != domain.AccountTypeUser {
		log.Fatalf("unknown account type %q", *accountType)
	}

	ui := &terminal{in: bufio.NewReader(os.Stdin), out: os.Stdout, client: client, logger: logger}
	if err := ui.run(context.Background(), t); err != nil {
		if errors.Is(err, errAborted) {
			fmt.Fprintln(os.Stdout, "registration cancelled")
			return
		}
		logger.Error("signup failed", zap.Error(err))
		os.Exit(1)
	}
}

func clientOrigin(g config.GuardConfig) string {
	if g.SiteURL != "" {
		return g.SiteURL
	}
	if len(g.LocalhostPorts) > 0 {
		return "http://localhost:" + g.LocalhostPorts[0]
	}
	return ""
}

var errAborted = errors.New("aborted")

// back is typed at any prompt to return to the previous step.
const back = "<"

type terminal struct {
	in     *bufio.Reader
	out    io.Writer
	client *wizard.Client
	logger *zap.Logger
}

func (t *terminal) ask(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(t.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(t.out, "%s: ", label)
	}
	line, err := t.in.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return "", errAborted
	case err != nil && !errors.Is(err, io.EOF):
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}

func (t *terminal) run(ctx context.Context, accountType domain.AccountType) error {
	checked := make(chan wizard.EmailStatus, 1)
	machine := wizard.NewMachine(wizard.Config{
		AccountType: accountType,
		Checker:     t.client,
		Submitter:   t.client,
		Logger:      t.logger,
		OnChange: func(s wizard.Snapshot) {
			if s.EmailStatus == wizard.EmailAvailable || s.EmailStatus == wizard.EmailTaken {
				select {
				case checked <- s.EmailStatus:
				default:
				}
			}
		},
	})

	if accountType == domain.AccountTypePro {
		sectors, err := t.client.ProData(ctx)
		if err != nil {
			return fmt.Errorf("load sectors: %w", err)
		}
		machine.SetCatalog(wizard.CatalogFromSectors(sectors))
		t.printSectors(sectors)
	}

	fmt.Fprintf(t.out, "Type %q at any prompt to go back.\n", back)
	for {
		snap := machine.Snapshot()
		if snap.State == wizard.StateExited {
			return errAborted
		}
		fmt.Fprintf(t.out, "\nStep %d/%d: %s\n", snap.StepIndex, snap.StepCount, snap.Step)

		goBack, err := t.fill(machine, snap.Step, checked)
		if err != nil {
			return err
		}
		if goBack {
			_ = machine.Retreat()
			continue
		}

		if snap.StepIndex < snap.StepCount {
			if err := machine.Advance(); err != nil {
				fmt.Fprintln(t.out, "  this step is not complete yet")
			}
			continue
		}

		summary, err := machine.Submit(ctx)
		if err != nil {
			var apiErr *wizard.APIError
			if errors.As(err, &apiErr) {
				fmt.Fprintf(t.out, "  registration failed: %s\n", apiErr.Message)
				if len(apiErr.Details) > 0 {
					fmt.Fprintf(t.out, "  %s\n", apiErr.Details)
				}
			} else {
				fmt.Fprintf(t.out, "  registration failed: %v\n", err)
			}
			continue
		}
		fmt.Fprintf(t.out, "\nAccount created: %s (%s)\n", summary.Email, summary.AccountType)
		return nil
	}
}

// fill prompts for the fields of step. It reports true when the user asked to go back.
func (t *terminal) fill(m *wizard.Machine, step wizard.Step, checked chan wizard.EmailStatus) (bool, error) {
	switch step {
	case wizard.StepEmail:
		return t.fillEmail(m, checked)
	case wizard.StepPersonal:
		return t.fillPersonal(m)
	case wizard.StepProfessional:
		return t.fillProfessional(m)
	case wizard.StepPassword:
		return t.fillPassword(m)
	case wizard.StepPersonalPassword:
		if goBack, err := t.fillPersonal(m); goBack || err != nil {
			return goBack, err
		}
		return t.fillPassword(m)
	}
	return false, fmt.Errorf("unknown step %q", step)
}

func (t *terminal) fillEmail(m *wizard.Machine, checked chan wizard.EmailStatus) (bool, error) {
	snap := m.Snapshot()
	email, err := t.ask("Email", snap.Email)
	if err != nil || email == back {
		return email == back, err
	}
	if email == snap.Email && snap.EmailStatus == wizard.EmailAvailable {
		return false, nil
	}
	select {
	case <-checked:
	default:
	}
	if err := m.SetEmail(email); err != nil {
		return false, err
	}
	select {
	case status := <-checked:
		if status == wizard.EmailTaken {
			fmt.Fprintln(t.out, "  this email is already in use")
		}
	case <-time.After(wizard.DefaultDebounce + 10*time.Second):
		fmt.Fprintln(t.out, "  could not verify the email, try again")
	}
	return false, nil
}

func (t *terminal) fillPersonal(m *wizard.Machine) (bool, error) {
	var info wizard.PersonalInfo
	prompts := []struct {
		label string
		dest  *string
	}{
		{"First name", &info.FirstName},
		{"Last name", &info.LastName},
		{"Phone (optional)", &info.PhoneNumber},
		{"Address (optional)", &info.Address},
		{"City (optional)", &info.City},
		{"Postal code (optional)", &info.PostalCode},
		{"Department code (optional)", &info.DepartmentCode},
	}
	for _, p := range prompts {
		value, err := t.ask(p.label, "")
		if err != nil || value == back {
			return value == back, err
		}
		*p.dest = value
	}
	return false, m.SetPersonal(info)
}

func (t *terminal) fillProfessional(m *wizard.Machine) (bool, error) {
	sector, err := t.ask("Sector key", "")
	if err != nil || sector == back {
		return sector == back, err
	}
	if err := m.SelectSector(sector); err != nil {
		return false, err
	}
	category, err := t.ask("Category key", "")
	if err != nil || category == back {
		return category == back, err
	}
	if err := m.SelectCategory(category); err != nil {
		return false, err
	}

	var details wizard.ProfessionalDetails
	if details.BusinessName, err = t.ask("Business name (optional)", ""); err != nil {
		return false, err
	}
	if details.Description, err = t.ask("Description (optional)", ""); err != nil {
		return false, err
	}
	years, err := t.ask("Years of experience (optional)", "")
	if err != nil {
		return false, err
	}
	if n, convErr := strconv.Atoi(years); convErr == nil && n >= 0 {
		details.ExperienceYears = &n
	}
	return false, m.SetProfessionalDetails(details)
}

func (t *terminal) fillPassword(m *wizard.Machine) (bool, error) {
	password, err := t.ask("Password", "")
	if err != nil || password == back {
		return password == back, err
	}
	confirmation, err := t.ask("Confirm password", "")
	if err != nil {
		return false, err
	}
	if err := m.SetPassword(password, confirmation); err != nil {
		return false, err
	}
	for _, v := range m.Snapshot().PasswordViolations {
		fmt.Fprintf(t.out, "  %s\n", v)
	}
	return false, nil
}

func (t *terminal) printSectors(sectors []domain.Sector) {
	fmt.Fprintln(t.out, "Available sectors:")
	for _, s := range sectors {
		keys := make([]string, 0, len(s.Categories))
		for _, c := range s.Categories {
			keys = append(keys, c.Key)
		}
		fmt.Fprintf(t.out, "  %s (%s): %s\n", s.Key, s.Label, strings.Join(keys, ", "))
	}
}
