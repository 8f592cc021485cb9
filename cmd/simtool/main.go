// simtool holds offline helpers for the simcore server.
//
// Commands:
//   - hash-secret <secret>   prints the bcrypt hash for network.join_secret_hash
//   - check [config.toml]    loads the content tables and scripts and prints a YAML summary
//
// Usage:
//
//	go run ./cmd/simtool hash-secret hunter2
//	go run ./cmd/simtool check config/simcore.toml
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/data"
	gonet "github.com/l1jgo/simcore/internal/net"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type summary struct {
	Abilities []string       `yaml:"abilities"`
	Effects   int            `yaml:"effects"`
	Weapons   int            `yaml:"weapons"`
	Scripts   []string       `yaml:"scripts"`
	Spawns    map[string]int `yaml:"spawns"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "hash-secret":
		if len(os.Args) != 3 {
			usage()
		}
		err = hashSecret(os.Args[2])
	case "check":
		path := "config/simcore.toml"
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		err = check(path)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "simtool: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: simtool hash-secret <secret> | check [config.toml]")
	os.Exit(2)
}

func hashSecret(secret string) error {
	if secret == "" {
		return errors.New("empty secret")
	}
	hash, err := gonet.HashSecret(secret)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func check(path string) error {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return err
	}
	content, err := data.Load(cfg.Content, zap.NewNop())
	if err != nil {
		return err
	}
	defer content.Close()

	s := summary{
		Abilities: content.Abilities.IDs(),
		Effects:   content.Effects.Count(),
		Weapons:   content.Weapons.Count(),
		Scripts:   content.Scripts.Abilities(),
		Spawns:    make(map[string]int, len(content.Spawns.Spawns)),
	}
	for _, sp := range content.Spawns.Spawns {
		s.Spawns[sp.Name] += sp.Count
	}
	out, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
