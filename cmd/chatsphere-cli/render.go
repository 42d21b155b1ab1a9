package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ageniuscoder/chatsphere/backend/internal/inbox"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

type printer struct {
	out     io.Writer
	colours bool
	self    int64
}

func (p printer) paint(c color.Color, s string) string {
	if !p.colours {
		return s
	}
	return c.Render(s)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func badgeText(b inbox.Badge) string {
	switch b.Kind {
	case inbox.BadgeUnread:
		return strconv.Itoa(b.Unread)
	case inbox.BadgeNotification:
		return "!"
	case inbox.BadgeNewer:
		return "•"
	default:
		return ""
	}
}

func chatName(c model.Chat, self int64) string {
	if c.IsGroup {
		return c.Name
	}
	for _, u := range c.Participants {
		if u.ID != self {
			return u.Name
		}
	}
	return c.Name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (p printer) chats(list []model.Chat, state *inbox.State) {
	table := newTable(p.out, []string{"ID", "Chat", "Latest", "Badge"})
	for _, c := range list {
		latest := ""
		if c.LatestMessage != nil {
			latest = truncate(c.LatestMessage.Sender.Name+": "+model.Preview(c.LatestMessage.Content), 40)
		}
		name := chatName(c, p.self)
		if c.ID == state.Active() {
			name = "> " + name
		}
		table.Append([]string{strconv.FormatInt(c.ID, 10), name, latest, badgeText(state.Badge(c.ID))})
	}
	table.Render()
}

func (p printer) notifications(entries []inbox.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(p.out, "no notifications")
		return
	}
	table := newTable(p.out, []string{"Message", "Chat", "From", "Preview"})
	for _, e := range entries {
		table.Append([]string{
			strconv.FormatInt(e.Message.ID, 10),
			e.ChatName,
			e.Message.Sender.Name,
			truncate(model.Preview(e.Message.Content), 50),
		})
	}
	table.Render()
}

func (p printer) message(m model.Message) {
	var b strings.Builder
	b.WriteString(p.paint(color.FgGray, m.CreatedAt.Local().Format("15:04")))
	b.WriteString(" ")
	name := m.Sender.Name
	if m.Sender.ID == p.self {
		name = "you"
	}
	b.WriteString(p.paint(color.FgCyan, name))
	b.WriteString(": ")
	switch {
	case m.IsDeleted:
		b.WriteString(p.paint(color.FgGray, model.Body(m.Content)))
	default:
		b.WriteString(model.Preview(m.Content))
	}
	if m.EditedAt != nil && !m.IsDeleted {
		b.WriteString(p.paint(color.FgGray, " (edited)"))
	}
	if len(m.Reactions) > 0 {
		counts := map[string]int{}
		var order []string
		for _, r := range m.Reactions {
			if counts[r.Emoji] == 0 {
				order = append(order, r.Emoji)
			}
			counts[r.Emoji]++
		}
		b.WriteString("  ")
		for _, e := range order {
			fmt.Fprintf(&b, "%s%d ", e, counts[e])
		}
	}
	fmt.Fprintf(p.out, "[%d] %s\n", m.ID, strings.TrimSpace(b.String()))
}

func (p printer) notify(e inbox.Entry) {
	head := p.paint(color.FgYellow, "● "+e.ChatName)
	fmt.Fprintf(p.out, "%s %s: %s\n", head, e.Message.Sender.Name, truncate(model.Preview(e.Message.Content), 60))
}

func (p printer) info(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(color.FgGray, fmt.Sprintf(format, args...)))
}

func (p printer) fail(err error) {
	fmt.Fprintln(p.out, p.paint(color.FgRed, "error: "+err.Error()))
}
