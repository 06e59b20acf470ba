package main

import (
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"run":      false,
		"validate": false,
		"keys":     false,
		"version":  false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q", versionCmd.Use)
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run is nil")
	}
}

func TestKeysSubcommands(t *testing.T) {
	var haveVerify, haveList bool
	for _, cmd := range keysCmd.Commands() {
		switch cmd.Name() {
		case "verify":
			haveVerify = true
		case "list":
			haveList = true
		}
	}
	if !haveVerify || !haveList {
		t.Errorf("keys subcommands = (verify=%v, list=%v), want both", haveVerify, haveList)
	}
}
