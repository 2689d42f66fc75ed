package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v2"

	"course-planner-sync/internal/cache"
	"course-planner-sync/internal/domain"
	"course-planner-sync/internal/planner"
	"course-planner-sync/pkg/jwt"
)

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "refresh":
		return a.refresh(ctx, rest)
	case "whoami":
		return a.whoami(ctx)
	case "profile":
		return a.profileCommand(ctx, rest)
	case "prefs":
		return a.prefsCommand(ctx, rest)
	case "courses":
		return a.courses(ctx)
	case "check":
		return a.check(ctx, rest)
	case "schedules":
		return a.schedules(ctx)
	case "schedule":
		return a.scheduleCommand(ctx, rest)
	case "help", "-h", "--help":
		usage(a.out)
		return nil
	}

	usage(a.out)
	return fmt.Errorf("unknown command %q", cmd)
}

// parseArgs lets flags appear before, between or after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) userID() (string, error) {
	token := a.client.Token()
	if token == "" {
		return "", errors.New("not logged in: set PLANNER_API_TOKEN (see `planner login`)")
	}
	return jwt.UserIDFromToken(token)
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	username := fs.String("username", "", "")
	email := fs.String("email", "", "")
	password := fs.String("password", "", "")
	major := fs.String("major", "", "")
	graduation := fs.Int("graduation", 0, "")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	id, err := a.client.CreateUser(ctx, domain.CreateUserRequest{
		Username:       *username,
		Email:          *email,
		Password:       *password,
		Major:          *major,
		GraduationYear: *graduation,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "registered user %s\n", id)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "")
	password := fs.String("password", "", "")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	resp, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	// The profile is cached so later commands work offline.
	a.cache.Put(ctx, resp.User.ID, cache.KindUserData, resp.User)

	fmt.Fprintf(a.out, "logged in as %s (%s)\n", resp.User.Username, resp.User.ID)
	fmt.Fprintf(a.out, "export PLANNER_API_TOKEN=%s\n", resp.AccessToken)
	fmt.Fprintf(a.out, "export PLANNER_REFRESH_TOKEN=%s\n", resp.RefreshToken)
	return nil
}

func (a *app) refresh(ctx context.Context, args []string) error {
	token := a.refreshToken
	if len(args) > 0 {
		token = args[0]
	}
	if token == "" {
		return errors.New("no refresh token: pass one or set PLANNER_REFRESH_TOKEN")
	}

	resp, err := a.client.Refresh(ctx, token)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "export PLANNER_API_TOKEN=%s\n", resp.AccessToken)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	pending := a.profile.Load(ctx, id)
	user, err := pending.Wait(ctx)
	if err != nil {
		return err
	}

	printProfile(a.out, user)
	return nil
}

func printProfile(w io.Writer, user domain.User) {
	fmt.Fprintf(w, "%s <%s>\nid: %s\nmajor: %s\n", user.Username, user.Email, user.ID, user.Major)
	if user.GraduationYear != 0 {
		fmt.Fprintf(w, "graduation: %d\n", user.GraduationYear)
	}
}

func (a *app) profileCommand(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "set" {
		return errors.New("usage: planner profile set [-username U] [-email E] [-major M] [-graduation Y]")
	}

	fs := newFlagSet("profile set")
	username := fs.String("username", "", "")
	email := fs.String("email", "", "")
	major := fs.String("major", "", "")
	graduation := fs.Int("graduation", 0, "")
	if _, err := parseArgs(fs, args[1:]); err != nil {
		return err
	}

	var req domain.UpdateUserRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "username":
			req.Username = username
		case "email":
			req.Email = email
		case "major":
			req.Major = major
		case "graduation":
			req.GraduationYear = graduation
		}
	})

	id, err := a.userID()
	if err != nil {
		return err
	}

	user, err := a.profile.Update(ctx, id, req)
	if err != nil {
		return err
	}
	printProfile(a.out, *user)
	return nil
}

func (a *app) prefsCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: planner prefs show|set")
	}

	switch args[0] {
	case "show":
		return a.prefsShow(ctx, args[1:])
	case "set":
		return a.prefsSet(ctx, args[1:])
	}
	return fmt.Errorf("unknown prefs command %q", args[0])
}

func (a *app) prefsShow(ctx context.Context, args []string) error {
	fs := newFlagSet("prefs show")
	format := fs.String("o", "text", "")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	id, err := a.userID()
	if err != nil {
		return err
	}

	rec, err := a.prefs.Load(ctx, id).Wait(ctx)
	if err != nil {
		return err
	}
	return printPreferences(a.out, rec, *format)
}

func (a *app) prefsSet(ctx context.Context, args []string) error {
	fs := newFlagSet("prefs set")
	maxCredits := fs.Int("max-credits", 0, "")
	departments := fs.String("departments", "", "")
	times := fs.String("times", "", "")
	completed := fs.String("completed", "", "")
	avoidEarly := fs.Bool("avoid-early", false, "")
	online := fs.Bool("online", false, "")
	file := fs.String("f", "", "")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	var update domain.PreferenceUpdate
	if *file != "" {
		loaded, err := readPreferencesFile(*file)
		if err != nil {
			return err
		}
		update = fullUpdate(loaded)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-credits":
			update.MaxCreditsPerSemester = maxCredits
		case "departments":
			list := splitList(*departments)
			update.PreferredDepartments = &list
		case "times":
			list := splitList(*times)
			update.PreferredTimes = &list
		case "completed":
			list := splitList(*completed)
			update.CompletedCourses = &list
		case "avoid-early":
			update.AvoidEarlyMorning = avoidEarly
		case "online":
			update.PreferOnlineCourses = online
		}
	})

	id, err := a.userID()
	if err != nil {
		return err
	}

	rec, err := a.prefs.Save(ctx, id, update)
	if err != nil {
		return err
	}
	return printPreferences(a.out, rec, "text")
}

func readPreferencesFile(path string) (domain.Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("failed to read preferences file: %w", err)
	}

	var prefs domain.Preferences
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return domain.Preferences{}, fmt.Errorf("failed to parse preferences file: %w", err)
	}
	return prefs, nil
}

func fullUpdate(p domain.Preferences) domain.PreferenceUpdate {
	return domain.PreferenceUpdate{
		CompletedCourses:      &p.CompletedCourses,
		PreferredDepartments:  &p.PreferredDepartments,
		PreferredTimes:        &p.PreferredTimes,
		MaxCreditsPerSemester: &p.MaxCreditsPerSemester,
		AvoidEarlyMorning:     &p.AvoidEarlyMorning,
		PreferOnlineCourses:   &p.PreferOnlineCourses,
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printPreferences(w io.Writer, rec domain.PreferenceRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "yaml":
		data, err := yaml.Marshal(rec.Preferences)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "text":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	p := rec.Preferences
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "completed courses\t%s\n", strings.Join(p.CompletedCourses, ", "))
	fmt.Fprintf(tw, "preferred departments\t%s\n", strings.Join(p.PreferredDepartments, ", "))
	fmt.Fprintf(tw, "preferred times\t%s\n", strings.Join(p.PreferredTimes, ", "))
	fmt.Fprintf(tw, "max credits\t%d\n", p.MaxCreditsPerSemester)
	fmt.Fprintf(tw, "avoid early morning\t%t\n", p.AvoidEarlyMorning)
	fmt.Fprintf(tw, "prefer online\t%t\n", p.PreferOnlineCourses)
	fmt.Fprintf(tw, "last modified\t%s (%s)\n", rec.LastModified.Format("2006-01-02 15:04:05"), rec.Origin)
	return tw.Flush()
}

func (a *app) courses(ctx context.Context) error {
	all, err := a.catalog.All(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tCREDITS\tDEPARTMENT\tMEETS")
	for _, c := range all {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", c.Code, c.Name, c.Credits, c.Department, slots(c))
	}
	return tw.Flush()
}

func slots(c domain.Course) string {
	if len(c.TimeSlots) == 0 {
		return "TBA"
	}
	parts := make([]string, 0, len(c.TimeSlots))
	for _, s := range c.TimeSlots {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ", ")
}

func (a *app) check(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: planner check <course>...")
	}

	conflicts, err := a.mutator.Preview(ctx, args)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Fprintln(a.out, "no conflicts")
		return nil
	}
	printConflicts(a.out, conflicts)
	return nil
}

func printConflicts(w io.Writer, conflicts []domain.ConflictRecord) {
	for _, c := range conflicts {
		fmt.Fprintf(w, "  %s\n", c)
	}
}

func printRejection(w io.Writer, rejected *planner.RejectedError) {
	switch {
	case len(rejected.Conflicts) > 0:
		fmt.Fprintln(w, "schedule not saved, conflicting courses:")
		printConflicts(w, rejected.Conflicts)
	case len(rejected.Advisory) > 0:
		fmt.Fprintln(w, "schedule not saved; the server named no pairs, checked locally:")
		printConflicts(w, rejected.Advisory)
	default:
		fmt.Fprintln(w, "schedule not saved, the server reported a conflict")
	}
	fmt.Fprintln(w, "re-run with -force to save anyway")
}

func (a *app) schedules(ctx context.Context) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	list, err := a.mutator.List(ctx, id)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTERM\tCREDITS\tCOURSES")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s %d\t%d\t%s\n", s.ID, s.Semester, s.Year, s.TotalCredits, strings.Join(s.CourseCodes, ", "))
	}
	return tw.Flush()
}

func (a *app) scheduleCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: planner schedule show|week|update|add|remove|delete|generate")
	}

	fs := newFlagSet("schedule " + args[0])
	force := fs.Bool("force", false, "")
	semester := fs.String("semester", "", "")
	year := fs.Int("year", 0, "")
	maxCredits := fs.Int("max-credits", 0, "")
	pos, err := parseArgs(fs, args[1:])
	if err != nil {
		return err
	}

	need := func(n int, usage string) error {
		if len(pos) < n {
			return fmt.Errorf("usage: planner schedule %s", usage)
		}
		return nil
	}

	var schedule *domain.Schedule
	switch args[0] {
	case "show":
		if err := need(1, "show <id>"); err != nil {
			return err
		}
		schedule, err = a.mutator.Get(ctx, pos[0])
	case "week":
		if err := need(1, "week <id>"); err != nil {
			return err
		}
		week, err := a.mutator.Weekly(ctx, pos[0])
		if err != nil {
			return err
		}
		return printWeek(a.out, week)
	case "update":
		if err := need(1, "update <id> <course>... [-force]"); err != nil {
			return err
		}
		schedule, err = a.mutator.Update(ctx, pos[0], pos[1:], *force)
	case "add":
		if err := need(2, "add <id> <course> [-force]"); err != nil {
			return err
		}
		schedule, err = a.mutator.Add(ctx, pos[0], pos[1], *force)
	case "remove":
		if err := need(2, "remove <id> <course> [-force]"); err != nil {
			return err
		}
		schedule, err = a.mutator.Remove(ctx, pos[0], pos[1], *force)
	case "delete":
		if err := need(1, "delete <id>"); err != nil {
			return err
		}
		if err := a.mutator.Delete(ctx, pos[0]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted schedule %s\n", pos[0])
		return nil
	case "generate":
		return a.generate(ctx, *semester, *year, *maxCredits)
	default:
		return fmt.Errorf("unknown schedule command %q", args[0])
	}

	var rejected *planner.RejectedError
	if errors.As(err, &rejected) {
		printRejection(a.out, rejected)
		return err
	}
	if err != nil {
		return err
	}

	printSchedule(a.out, schedule)
	return nil
}

func (a *app) generate(ctx context.Context, semester string, year, maxCredits int) error {
	sem, err := domain.ParseSemester(semester)
	if err != nil {
		return err
	}

	id, err := a.userID()
	if err != nil {
		return err
	}

	resp, err := a.mutator.Generate(ctx, domain.GenerateScheduleRequest{
		UserID:     id,
		Semester:   sem,
		Year:       year,
		MaxCredits: maxCredits,
	})
	if err != nil {
		return err
	}

	printSchedule(a.out, resp.Schedule)
	for _, s := range resp.Skipped {
		fmt.Fprintf(a.out, "skipped %s:\n", s.Code)
		printConflicts(a.out, s.Conflicts)
	}
	return nil
}

func printSchedule(w io.Writer, s *domain.Schedule) {
	fmt.Fprintf(w, "schedule %s: %s %d, %d credits\n", s.ID, s.Semester, s.Year, s.TotalCredits)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range s.Courses {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\n", c.Code, c.Name, c.Credits, slots(c))
	}
	tw.Flush()
}

func printWeek(w io.Writer, week *domain.WeeklySchedule) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, day := range week.Days {
		fmt.Fprintf(tw, "%s\n", day.Day)
		if len(day.Entries) == 0 {
			fmt.Fprintln(tw, "  -")
			continue
		}
		for _, e := range day.Entries {
			fmt.Fprintf(tw, "  %s-%s\t%s\t%s\t%s\t%d cr\n", e.Start, e.End, e.Code, e.Name, e.Room, e.Credits)
		}
	}
	return tw.Flush()
}
