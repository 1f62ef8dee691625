package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/annkit"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "List the parameters an index kind accepts",
	Long: `List every parameter registered for an index kind together with its
type, the phases that consume it, its default and its allowed range.`,
	RunE: runParams,
}

func init() {
	rootCmd.AddCommand(paramsCmd)
}

func runParams(cmd *cobra.Command, args []string) error {
	kind, err := annkit.ParseKind(kindName)
	if err != nil {
		return err
	}
	cfg, err := annkit.NewConfig(kind)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tPHASES\tDEFAULT\tRANGE\tDESCRIPTION")
	for _, e := range cfg.Schema().Entries() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Name, e.Kind, e.Phases, orDash(e.Default), rangeOf(e.Min, e.Max), e.Description)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return nil
}

func orDash(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

func rangeOf(lo, hi any) string {
	if lo == nil && hi == nil {
		return "-"
	}
	return fmt.Sprintf("[%s, %s]", orDash(lo), orDash(hi))
}
