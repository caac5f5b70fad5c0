package scenarios_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
	"github.com/xkilldash9x/walkthrough/internal/scenarios"
)

func testParams() scenarios.Params {
	return scenarios.ParamsFromConfig(config.TargetConfig{
		BaseURL:       "http://localhost:3000",
		AdminEmail:    "alex@example.com",
		AdminPassword: "password123",
		LogDate:       "2026-01-17",
	}, "0f8e7d6c-1111-2222-3333-444455556666", time.Now())
}

func TestParamsFromConfig(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	p := scenarios.ParamsFromConfig(config.TargetConfig{BaseURL: "http://app"}, "abc", now)
	assert.Equal(t, "2026-03-05", p.LogDate, "empty log date means today")
	assert.Equal(t, "test_user_abc@example.com", p.UserEmail)

	p = testParams()
	assert.Equal(t, "test_user_0f8e7d6c@example.com", p.UserEmail)
	assert.Equal(t, "2026-01-17", p.Vars()["LOG_DATE"])
	assert.Equal(t, "http://localhost:3000", p.Vars()["BASE_URL"])
}

func TestAllScenariosValidate(t *testing.T) {
	all := scenarios.All(testParams())
	require.Len(t, all, len(scenarios.Names()))
	for _, sc := range all {
		t.Run(sc.Name, func(t *testing.T) {
			require.NoError(t, sc.Validate())
			assert.Equal(t, "http://localhost:3000", sc.BaseURL)
		})
	}
}

func TestLookup(t *testing.T) {
	sc, err := scenarios.Lookup("login", testParams())
	require.NoError(t, err)
	assert.Equal(t, "login", sc.Name)

	_, err = scenarios.Lookup("checkout", testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown scenario "checkout"`)
	assert.Contains(t, err.Error(), "daily-log, login, user-management, weekly-report")
}

func TestLogin_CriticalAuthentication(t *testing.T) {
	sc := scenarios.Login(testParams())
	require.Len(t, sc.Steps, 4)

	open := sc.Steps[0]
	assert.Equal(t, scenario.Navigate("/login"), open.Action)
	assert.Nil(t, open.Verify)

	submit := sc.Steps[1]
	assert.Equal(t, scenario.URLEquals("/"), submit.Verify)
	assert.Equal(t, 10*time.Second, submit.Timeout)
	assert.Equal(t, scenario.Critical, submit.Criticality)
	require.Len(t, submit.Action.Actions, 3)
	assert.Equal(t, "password123", submit.Action.Actions[1].Value)

	assert.Equal(t, scenario.Critical, sc.Steps[2].Criticality)
	assert.Equal(t, scenario.VerifyAnyOf, sc.Steps[2].Verify.Kind)
	assert.Equal(t, scenario.NonCritical, sc.Steps[3].Criticality, "the slogan is informative")
}

func TestUserManagement_StatusBadgeIsInformative(t *testing.T) {
	sc := scenarios.UserManagement(testParams())

	var disable *scenario.Step
	for i := range sc.Steps {
		if sc.Steps[i].Name == "disable account" {
			disable = &sc.Steps[i]
		}
	}
	require.NotNil(t, disable)
	assert.Equal(t, scenario.VisibleText("已禁用"), disable.Verify)
	assert.Equal(t, scenario.NonCritical, disable.Criticality)
	assert.Equal(t, 5*time.Second, disable.Timeout)

	last := sc.Steps[len(sc.Steps)-1]
	assert.Equal(t, scenario.NotVisibleText("test_user_0f8e7d6c@example.com"), last.Verify)

	assert.Equal(t, scenario.Critical, sc.Steps[3].Criticality, "the user page gate is critical")
}

func TestDailyLog_UsesLogDate(t *testing.T) {
	sc := scenarios.DailyLog(testParams())
	var urls []string
	for _, step := range sc.Steps {
		if step.Action.Kind == scenario.ActionNavigate {
			urls = append(urls, step.Action.URL)
		}
	}
	assert.Equal(t, []string{"/login", "/logs/2026-01-17", "/logs"}, urls)

	listed := sc.Steps[5]
	assert.Equal(t, "log entry listed", listed.Name)
	assert.Equal(t, scenario.VisibleText("17"), listed.Verify)
}
