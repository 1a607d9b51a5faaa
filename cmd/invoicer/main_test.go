package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinvoicing "github.com/dandroos/node-invoicer/internal/application/invoicing"
)

func TestParseItems(t *testing.T) {
	items, err := parseItems([]string{"Logo design=100.50", "Fee = split=25", " Hosting =0"})
	require.NoError(t, err)
	assert.Equal(t, []appinvoicing.LineItemInput{
		{Description: "Logo design", Amount: 100.50},
		{Description: "Fee = split", Amount: 25},
		{Description: "Hosting", Amount: 0},
	}, items)

	empty, err := parseItems(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{"no amount", "=5", "Work=abc"} {
		_, err := parseItems([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()

	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"issue", "next-number", "migrate"}, names)

	migrate := app.Command("migrate")
	require.NotNil(t, migrate)
	var subs []string
	for _, c := range migrate.Subcommands {
		subs = append(subs, c.Name)
	}
	assert.Equal(t, []string{"up", "down", "version", "force"}, subs)
}
