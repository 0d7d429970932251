package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/chzyer/readline"
	"muzzammil.xyz/jsonc"

	"github.com/sprouterdb/sprouter/conf"
	"github.com/sprouterdb/sprouter/engine"
	"github.com/sprouterdb/sprouter/log"
	"github.com/sprouterdb/sprouter/server"
)

var arguments struct {
	Conf     string     `help:"Path to config file, JSON with comments allowed." type:"existingfile"`
	DataDir  string     `help:"Directory to store data files in. Implies on disk storage."`
	InMemory bool       `help:"Keep all data in memory, nothing is persisted."`
	Log      log.Config `embed:"" prefix:"log-"`
	VI       bool       `help:"Enable VI mode."`
}

func main() {
	kctx := kong.Parse(&arguments)
	kctx.FatalIfErrorf(run(kctx))
}

func run(kctx *kong.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Logging settings from the config file take precedence over the flag
	// defaults.
	if cfg.LogFormat != "" {
		arguments.Log.Format = cfg.LogFormat
	}
	if cfg.LogLevel != "" {
		arguments.Log.Level = cfg.LogLevel
	}
	if cfg.LogFile != "" {
		arguments.Log.File = cfg.LogFile
	}
	if err := arguments.Log.Configure(); err != nil {
		return err
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	defer func() {
		_ = s.Stop()
	}()

	return repl(kctx, s.GetEngine())
}

func loadConfig() (conf.Config, error) {
	cfg := conf.NewDefaultConfig()
	if arguments.Conf != "" {
		b, err := ioutil.ReadFile(arguments.Conf)
		if err != nil {
			return cfg, err
		}
		// jsonc so config files can carry comments
		b = jsonc.ToJSON(b)
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}
	if arguments.DataDir != "" {
		cfg.DataDir = arguments.DataDir
		cfg.InMemory = false
	}
	if arguments.InMemory {
		cfg.InMemory = true
	}
	return cfg, nil
}

func repl(kctx *kong.Context, eng *engine.Engine) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:            filepath.Join(home, ".sprouter.history"),
		DisableAutoSaveHistory: true,
		VimMode:                arguments.VI,
	})
	if err != nil {
		return err
	}
	for {
		// Gather multi-line statement terminated by a ;
		rl.SetPrompt("sprouter> ")
		cmd := []string{}
		for {
			line, err := rl.Readline()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			cmd = append(cmd, line)
			if strings.HasSuffix(line, ";") {
				break
			}
			rl.SetPrompt("          ")
		}
		statement := strings.Join(cmd, " ")
		_ = rl.SaveHistory(statement)

		res, err := eng.Execute(statement)
		if err != nil {
			kctx.Errorf("%s", err)
			continue
		}
		printResult(res)
	}
}

func printResult(res *engine.Result) {
	if len(res.ColumnNames) == 0 {
		fmt.Printf("%d rows affected\n", res.RowsAffected)
		return
	}
	fmt.Println(strings.Join(res.ColumnNames, "|"))
	for _, row := range res.Rows {
		cols := make([]string, len(row))
		for i, v := range row {
			cols[i] = v.String()
		}
		fmt.Println(strings.Join(cols, "|"))
	}
	fmt.Printf("%d rows returned\n", len(res.Rows))
}
