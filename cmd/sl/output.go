package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"sprintline/internal/domain"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAMLOrJSON(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printProjects(items []domain.Project) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Name", "Created by", "Created at"})
	for _, p := range items {
		tw.AppendRow(table.Row{p.ID, p.Name, p.CreatedBy, p.CreatedAt})
	}
	tw.Render()
	return nil
}

func printSprint(s domain.Sprint) error {
	if viper.GetBool("json") {
		return printJSON(s)
	}
	return printSprints([]domain.Sprint{s})
}

func printSprints(items []domain.Sprint) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Name", "Status", "Start", "End", "Capacity", "Version"})
	for _, s := range items {
		tw.AppendRow(table.Row{s.ID, s.Name, s.Status, s.StartDate, s.EndDate, s.Capacity, s.Version})
	}
	tw.Render()
	return nil
}

func printStory(u domain.UserStory) error {
	if viper.GetBool("json") {
		return printJSON(u)
	}
	return printStories([]domain.UserStory{u})
}

func printStories(items []domain.UserStory) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Effort", "Sprint", "Depends on", "Version"})
	var effort int
	for _, u := range items {
		sprint := ""
		if u.SprintID != nil {
			sprint = *u.SprintID
		}
		effort += u.EffortPoints
		tw.AppendRow(table.Row{u.ID, u.Title, u.Status, u.Priority, u.EffortPoints, sprint, strings.Join(u.DependsOn, ","), u.Version})
	}
	if len(items) > 1 {
		tw.AppendFooter(table.Row{"", "", "", "Total", effort})
	}
	tw.Render()
	return nil
}

func printHistory(items []domain.HistoryEntry) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"When", "Action", "Actor", "Description"})
	for _, h := range items {
		tw.AppendRow(table.Row{h.TS, h.Action, h.ActorID, h.Description})
	}
	tw.Render()
	return nil
}

func printValue(label string, v any) error {
	if viper.GetBool("json") {
		return printJSON(map[string]any{label: v})
	}
	fmt.Println(v)
	return nil
}
