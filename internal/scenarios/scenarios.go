// Package scenarios holds the built-in LogMind journeys. They are data for
// the runner: every step states its own action, check, timeout and
// criticality.
package scenarios

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

const (
	logDateLayout = "2006-01-02"
	// newUserPassword is the password given to the throwaway account.
	newUserPassword = "password123"

	loginTimeout = 10 * time.Second
	toastTimeout = 5 * time.Second
)

// Params parameterises the journeys for one target deployment.
type Params struct {
	BaseURL       string
	AdminEmail    string
	AdminPassword string
	// LogDate is the yyyy-mm-dd daily log page the daily-log journey writes.
	LogDate string
	RunID   string
	// UserEmail is the account user-management creates and then deletes.
	UserEmail string
}

// ParamsFromConfig fills Params from the target section. An empty log date
// becomes now's date; the user email is derived from runID so concurrent
// runs never collide.
func ParamsFromConfig(target config.TargetConfig, runID string, now time.Time) Params {
	p := Params{
		BaseURL:       target.BaseURL,
		AdminEmail:    target.AdminEmail,
		AdminPassword: target.AdminPassword,
		LogDate:       target.LogDate,
		RunID:         runID,
	}
	if p.LogDate == "" {
		p.LogDate = now.Format(logDateLayout)
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	p.UserEmail = fmt.Sprintf("test_user_%s@example.com", short)
	return p
}

// Vars exposes Params as ${NAME} placeholders for scenario files.
func (p Params) Vars() scenario.Vars {
	return scenario.Vars{
		"BASE_URL":       p.BaseURL,
		"ADMIN_EMAIL":    p.AdminEmail,
		"ADMIN_PASSWORD": p.AdminPassword,
		"LOG_DATE":       p.LogDate,
		"RUN_ID":         p.RunID,
		"USER_EMAIL":     p.UserEmail,
	}
}

// Builder constructs a journey from Params.
type Builder func(Params) *scenario.Scenario

var registry = map[string]Builder{
	"login":           Login,
	"daily-log":       DailyLog,
	"user-management": UserManagement,
	"weekly-report":   WeeklyReport,
}

// Names lists the built-in journeys in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the named journey.
func Lookup(name string, p Params) (*scenario.Scenario, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return build(p), nil
}

// All builds every journey in Names order.
func All(p Params) []*scenario.Scenario {
	names := Names()
	out := make([]*scenario.Scenario, len(names))
	for i, name := range names {
		out[i] = registry[name](p)
	}
	return out
}

// -- Shared Locators --

var (
	emailField    = scenario.CSS("input[name='email']")
	passwordField = scenario.CSS("input[name='password']")
	nameField     = scenario.CSS("input[name='name']")
	submitButton  = scenario.CSS("button[type='submit']")
	searchField   = scenario.CSS("input[placeholder*='搜索']")
	successToast  = scenario.VisibleText("成功")
)

func button(label string) scenario.Locator {
	return scenario.CSS("button").HasText(label)
}

// rowMenu is the action menu trigger in the table row mentioning text.
func rowMenu(text string) scenario.Locator {
	return scenario.CSS("tr").HasText(text).Find(scenario.CSS("button"))
}

// loginSteps authenticates as the admin. Both checks are critical because
// every later step needs a session.
func loginSteps(p Params) []scenario.Step {
	return []scenario.Step{
		{Name: "open login page", Action: scenario.Navigate("/login")},
		{
			Name: "submit credentials",
			Action: scenario.Sequence(
				scenario.Fill(emailField, p.AdminEmail),
				scenario.Fill(passwordField, p.AdminPassword),
				scenario.Click(submitButton),
			),
			Verify:      scenario.URLEquals("/"),
			Timeout:     loginTimeout,
			Criticality: scenario.Critical,
		},
		{
			Name:        "dashboard loaded",
			Action:      scenario.Observe(),
			Verify:      scenario.AnyOf(scenario.TitleContains("LogMind"), scenario.VisibleText("工作台")),
			Criticality: scenario.Critical,
		},
	}
}

// Login signs in and checks the dashboard.
func Login(p Params) *scenario.Scenario {
	steps := append(loginSteps(p), scenario.Step{
		Name:        "slogan visible",
		Action:      scenario.Observe(),
		Verify:      scenario.VisibleText("Log your work"),
		Criticality: scenario.NonCritical,
	})
	return &scenario.Scenario{
		Name:        "login",
		Description: "Sign in as the admin and land on the dashboard.",
		BaseURL:     p.BaseURL,
		Steps:       steps,
	}
}

// DailyLog writes a daily log for p.LogDate and finds it in the list.
func DailyLog(p Params) *scenario.Scenario {
	projectField := scenario.CSS("input[name='items.0.project']")
	steps := append(loginSteps(p),
		scenario.Step{
			Name:        "open daily log form",
			Action:      scenario.Navigate("/logs/" + p.LogDate),
			Verify:      scenario.VisibleSelector(projectField),
			Criticality: scenario.Critical,
		},
		scenario.Step{
			Name: "save daily log",
			Action: scenario.Sequence(
				scenario.Fill(projectField, "E2E Project Alpha"),
				scenario.Fill(scenario.CSS("textarea[name='items.0.content']"), "Testing new log page structure"),
				scenario.Fill(scenario.CSS("textarea[name='tomorrowPlan']"), "Verify Scheduler"),
				scenario.Click(button("保存日志")),
			),
		},
		scenario.Step{
			Name:        "log entry listed",
			Action:      scenario.Navigate("/logs"),
			Verify:      scenario.VisibleText(dayOfMonth(p.LogDate)),
			Criticality: scenario.NonCritical,
		},
		scenario.Step{
			Name:        "calendar toggle visible",
			Action:      scenario.Observe(),
			Verify:      scenario.VisibleSelector(button("日历")),
			Criticality: scenario.NonCritical,
		},
		scenario.Step{
			Name:        "user management link visible",
			Action:      scenario.Observe(),
			Verify:      scenario.VisibleText("用户管理"),
			Criticality: scenario.NonCritical,
		},
	)
	return &scenario.Scenario{
		Name:        "daily-log",
		Description: "Write a daily log entry and find it in the log list.",
		BaseURL:     p.BaseURL,
		Steps:       steps,
	}
}

// dayOfMonth returns the unpadded day of a yyyy-mm-dd date as the log list
// renders it.
func dayOfMonth(date string) string {
	t, err := time.Parse(logDateLayout, date)
	if err != nil {
		return date
	}
	return strconv.Itoa(t.Day())
}

// UserManagement creates, finds, edits, disables and deletes an account.
// Only reaching the page is critical; each later check is informative so
// the remaining operations still run and get reported.
func UserManagement(p Params) *scenario.Scenario {
	email := p.UserEmail
	steps := append(loginSteps(p),
		scenario.Step{
			Name:        "open user management",
			Action:      scenario.Navigate("/settings/users"),
			Verify:      scenario.VisibleText("用户管理"),
			Criticality: scenario.Critical,
		},
		scenario.Step{
			Name: "create user",
			Action: scenario.Sequence(
				scenario.Click(button("添加用户")),
				scenario.Fill(nameField, "Test User"),
				scenario.Fill(emailField, email),
				scenario.Fill(passwordField, newUserPassword),
				scenario.Click(button("创建用户")),
			),
			Verify:      successToast,
			Timeout:     toastTimeout,
			Criticality: scenario.NonCritical,
		},
		scenario.Step{
			Name:        "search user",
			Action:      scenario.Fill(searchField, email),
			Verify:      scenario.VisibleText(email),
			Criticality: scenario.NonCritical,
		},
		scenario.Step{
			Name: "edit user",
			Action: scenario.Sequence(
				scenario.Click(rowMenu(email)),
				scenario.Click(scenario.Text("编辑")),
				scenario.Fill(nameField, "Updated User"),
				scenario.Click(button("保存修改")),
			),
			Verify:      successToast,
			Timeout:     toastTimeout,
			Criticality: scenario.NonCritical,
		},
		scenario.Step{
			Name:        "edit persisted",
			Action:      scenario.Sequence(scenario.Reload(), scenario.Fill(searchField, email)),
			Verify:      scenario.VisibleText("Updated User"),
			Criticality: scenario.NonCritical,
		},
		scenario.Step{
			Name: "disable account",
			Action: scenario.Sequence(
				scenario.Click(rowMenu(email)),
				scenario.Click(scenario.Text("禁用账号")),
			),
			Verify:      scenario.VisibleText("已禁用"),
			Timeout:     toastTimeout,
			Criticality: scenario.NonCritical,
		},
		scenario.Step{
			Name: "delete account",
			Action: scenario.Sequence(
				scenario.Click(rowMenu(email)),
				scenario.Click(scenario.Text("删除账号")),
				scenario.Click(button("确认删除")),
			),
			Verify:      successToast,
			Timeout:     toastTimeout,
			Criticality: scenario.NonCritical,
		},
		scenario.Step{
			Name:        "user removed",
			Action:      scenario.Observe(),
			Verify:      scenario.NotVisibleText(email),
			Criticality: scenario.NonCritical,
		},
	)
	return &scenario.Scenario{
		Name:        "user-management",
		Description: "Create, search, edit, disable and delete a user account.",
		BaseURL:     p.BaseURL,
		Steps:       steps,
	}
}

// WeeklyReport filters the weekly report to the current week.
func WeeklyReport(p Params) *scenario.Scenario {
	today := scenario.CSS(".rdp-day_today")
	steps := append(loginSteps(p),
		scenario.Step{
			Name: "open date filter",
			Action: scenario.Sequence(
				scenario.Navigate("/reports/weekly"),
				scenario.Click(scenario.CSS(`button[title="筛选日期"]`)),
			),
			Verify:      scenario.VisibleSelector(today),
			Criticality: scenario.Critical,
		},
		scenario.Step{
			Name:        "select current week",
			Action:      scenario.Click(today),
			Verify:      scenario.VisibleSelector(scenario.CSS(`button[title="清除筛选"]`)),
			Criticality: scenario.Critical,
		},
	)
	return &scenario.Scenario{
		Name:        "weekly-report",
		Description: "Filter the weekly report by picking today in the calendar.",
		BaseURL:     p.BaseURL,
		Steps:       steps,
	}
}
