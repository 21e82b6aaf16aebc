package main

import (
	"flag"
	"log"

	"github.com/danmuck/swarmctl/internal/config"
)

const defaultPath = "cmd/swarmctl/config.toml"

func main() {
	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated swarmctl config at %s agents=%d motion_endpoints=%d nats=%v",
			*input, len(cfg.Agents), len(cfg.Motion.Endpoints), cfg.NATSEnabled)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote swarmctl config template to %s", *output)
}
