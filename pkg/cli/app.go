package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"
)

const indentUnit = "    "

func indent(level int) string { return strings.Repeat(indentUnit, level) }

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		fmt.Fprint(a.Stderr, a.UsagePage(terminalWidth()))
		return err
	}
	if help {
		fmt.Fprint(a.Stdout, a.HelpPage(terminalWidth()))
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

type pageLayout struct {
	termWidth  int
	leftWidth  int
	usageWidth int
}

func (a *App) layout(termWidth int, withGroups bool) pageLayout {
	l := pageLayout{termWidth: termWidth}
	grow := func(p *int, s string) {
		if len(s) > *p {
			*p = len(s)
		}
	}
	for _, flag := range a.optionFlags() {
		grow(&l.leftWidth, formatFlagString(flag))
		grow(&l.usageWidth, flag.Usage)
	}
	if withGroups {
		for _, group := range a.FlagSet.flagGroups {
			prefix := group.Flags[0].Prefix
			grow(&l.leftWidth, fmt.Sprintf("-%sno-<%s>", prefix, group.GroupType))
			for _, entry := range group.Flags {
				grow(&l.leftWidth, entry.Name)
				grow(&l.usageWidth, entry.Usage)
			}
		}
	}
	return l
}

// UsagePage is the short page printed after a command-line error.
func (a *App) UsagePage(termWidth int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s <options> [input.bfs] ...\n", a.Name)

	if flags := a.optionFlags(); len(flags) > 0 {
		l := a.layout(termWidth, false)
		fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
		for _, flag := range flags {
			writeEntry(&sb, l, formatFlagString(flag), flag.Usage, defaultMarker(flag))
		}
	}

	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	return sb.String()
}

func (a *App) HelpPage(termWidth int) string {
	var sb strings.Builder
	l := a.layout(termWidth, true)

	sb.WriteString("\n")
	authors := strings.Join(a.Authors, ", ") + " and contributors"
	if a.Since != 0 && a.Since < time.Now().Year() {
		fmt.Fprintf(&sb, "%sCopyright (c) %d-%d: %s\n", indent(1), a.Since, time.Now().Year(), authors)
	} else {
		fmt.Fprintf(&sb, "%sCopyright (c) %d: %s\n", indent(1), time.Now().Year(), authors)
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent(1), a.Repository)
	}

	if a.Synopsis != "" {
		synopsis := strings.NewReplacer("[", "<", "]", ">").Replace(a.Synopsis)
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indent(1), indent(2), a.Name, synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indent(1))
		for _, line := range wrapText(a.Description, termWidth-len(indent(2))) {
			fmt.Fprintf(&sb, "%s%s\n", indent(2), line)
		}
	}

	if flags := a.optionFlags(); len(flags) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
		for _, flag := range flags {
			writeEntry(&sb, l, formatFlagString(flag), flag.Usage, defaultMarker(flag))
		}
	}

	groups := make([]FlagGroup, len(a.FlagSet.flagGroups))
	copy(groups, a.FlagSet.flagGroups)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		writeGroup(&sb, l, group)
	}
	return sb.String()
}

// optionFlags lists the plain flags, sorted, leaving out -W/-F group members.
func (a *App) optionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, group := range a.FlagSet.flagGroups {
		for _, entry := range group.Flags {
			grouped[entry.Prefix+entry.Name] = true
			grouped[entry.Prefix+"no-"+entry.Name] = true
		}
	}
	var flags []*Flag
	for name, flag := range a.FlagSet.flags {
		if !grouped[name] {
			flags = append(flags, flag)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags
}

func formatFlagString(flag *Flag) string {
	var sb strings.Builder
	isBool := isBoolFlag(flag)
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s", flag.Shorthand)
		if !isBool {
			fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
		}
		sb.WriteString(", ")
	}
	dashes := "--"
	if len(flag.Name) > 1 && (flag.Name[0] == 'W' || flag.Name[0] == 'F') {
		dashes = "-"
	}
	fmt.Fprintf(&sb, "%s%s", dashes, flag.Name)
	if !isBool && flag.ExpectedType != "" {
		if flag.Shorthand != "" {
			fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
		} else {
			fmt.Fprintf(&sb, "=%s", flag.ExpectedType)
		}
	}
	return sb.String()
}

func defaultMarker(flag *Flag) string {
	if isBoolFlag(flag) || flag.DefValue == "" || flag.DefValue == "[]" {
		return ""
	}
	return "|" + flag.DefValue + "|"
}

func writeEntry(sb *strings.Builder, l pageLayout, left, usage, right string) {
	indentWidth := len(indent(2))
	usageWidth := l.termWidth - indentWidth - l.leftWidth - 3 - len(right)
	if usageWidth < 10 {
		usageWidth = 10
	}
	lines := wrapText(usage, usageWidth)
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}

	padTo := l.usageWidth
	if padTo > usageWidth {
		padTo = usageWidth
	}
	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indent(2), l.leftWidth, left, padTo, first, right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indent(2), l.leftWidth, left, first)
	}
	cont := strings.Repeat(" ", l.leftWidth+1)
	for _, line := range lines[min(1, len(lines)):] {
		fmt.Fprintf(sb, "%s%s%s\n", indent(2), cont, line)
	}
}

func writeGroup(sb *strings.Builder, l pageLayout, group FlagGroup) {
	prefix := group.Flags[0].Prefix
	groupType := group.GroupType
	if groupType == "" {
		groupType = "flag"
	}

	fmt.Fprintf(sb, "\n%s%s\n", indent(1), group.Name)
	fmt.Fprintf(sb, "%s%-*s Enable a specific %s\n", indent(2), l.leftWidth, fmt.Sprintf("-%s<%s>", prefix, groupType), groupType)
	fmt.Fprintf(sb, "%s%-*s Disable a specific %s\n", indent(2), l.leftWidth, fmt.Sprintf("-%sno-<%s>", prefix, groupType), groupType)
	if group.AvailableFlagsHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indent(1), group.AvailableFlagsHeader)
	}

	entries := make([]FlagGroupEntry, len(group.Flags))
	copy(entries, group.Flags)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, entry := range entries {
		mark := "|-|"
		if entry.Enabled != nil && *entry.Enabled && (entry.Disabled == nil || !*entry.Disabled) {
			mark = "|x|"
		}
		writeEntry(sb, l, entry.Name, entry.Usage, mark)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 20 {
		return 20
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+len(word)+1 > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
