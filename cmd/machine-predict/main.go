// The machine-predict binary serves one per-machine prediction request:
// a JSON request on stdin, a JSON response on stdout. Failures come back
// as a structured error payload and a non-zero exit code, so the calling
// platform can log and alert.
package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/osiris-sg/sugarcane-backend/internal/machine"
	"github.com/osiris-sg/sugarcane-backend/models"
)

func main() {
	debug := os.Getenv("DEBUG") != ""
	lvl := zerolog.WarnLevel
	if debug {
		lvl = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fail("reading stdin: " + err.Error())
	}

	var req models.MachineRequest
	if err := json.Unmarshal(input, &req); err != nil {
		fail("parsing request: " + err.Error())
	}

	resp := machine.NewPredictor(debug).Handle(req)
	writeJSON(resp)
	if !resp.Success {
		os.Exit(1)
	}
}

func fail(msg string) {
	writeJSON(models.MachineResponse{Success: false, Error: msg})
	os.Exit(1)
}

func writeJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("writing response failed")
	}
}
