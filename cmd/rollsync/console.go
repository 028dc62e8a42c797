package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KirkDiggler/roll-sync/internal/dice"
	"github.com/KirkDiggler/roll-sync/internal/engine"
	"github.com/KirkDiggler/roll-sync/internal/entities"
	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/orchestrators/override"
	"github.com/KirkDiggler/roll-sync/internal/orchestrators/rollsync"
)

// rosterEntry maps a remote character to a local actor name and its
// configured roll mode.
type rosterEntry struct {
	Name string
	Mode entities.RollMode
}

// consoleApp is the local-app stand-in for the daemon: synced rolls,
// initiative and sheet updates land in the structured log, and roll
// commands typed on stdin go through the override orchestrator. A real
// tabletop frontend plugs in by implementing the same orchestrator and
// engine interfaces.
type consoleApp struct {
	roster map[string]rosterEntry // remote id -> local actor
	stdin  *bufio.Scanner
}

func newConsoleApp(roster map[string]rosterEntry, stdin *bufio.Scanner) *consoleApp {
	return &consoleApp{roster: roster, stdin: stdin}
}

func (a *consoleApp) actorFor(remoteID string) (*entities.Actor, bool) {
	entry, ok := a.roster[remoteID]
	if !ok {
		return nil, false
	}
	return &entities.Actor{
		ID:       remoteID,
		Name:     entry.Name,
		Type:     entities.ActorTypePlayerCharacter,
		RemoteID: remoteID,
	}, true
}

// GetLocalActor resolves a remote character against the --actor roster
func (a *consoleApp) GetLocalActor(_ context.Context, input *rollsync.GetLocalActorInput) (*rollsync.GetLocalActorOutput, error) {
	actor, ok := a.actorFor(input.RemoteID)
	if !ok {
		return nil, errors.NotFoundf("no actor mapped for remote id %s", input.RemoteID)
	}
	return &rollsync.GetLocalActorOutput{Actor: actor}, nil
}

// PostRoll prints the synced roll
func (a *consoleApp) PostRoll(_ context.Context, input *rollsync.PostRollInput) (*rollsync.PostRollOutput, error) {
	slog.Info("roll",
		"actor", input.Actor.Name,
		"action", input.Event.Action(),
		"type", input.RollType,
		"formula", input.Result.Formula,
		"total", input.Result.Total,
	)
	return &rollsync.PostRollOutput{}, nil
}

// SetInitiative prints the synced initiative total
func (a *consoleApp) SetInitiative(_ context.Context, input *rollsync.SetInitiativeInput) (*rollsync.SetInitiativeOutput, error) {
	slog.Info("initiative", "actor", input.Actor.Name, "total", input.Total)
	return &rollsync.SetInitiativeOutput{}, nil
}

// GetRollMode reports the mode configured on the --actor flag,
// defaulting to normal evaluation.
func (a *consoleApp) GetRollMode(_ context.Context, input *override.GetRollModeInput) (*override.GetRollModeOutput, error) {
	mode := entities.RollModeNormal
	if entry, ok := a.roster[input.Actor.RemoteID]; ok && entry.Mode != "" {
		mode = entry.Mode
	}
	return &override.GetRollModeOutput{Mode: mode}, nil
}

// PromptManualRoll reads physically rolled die values from stdin. A
// blank line cancels and keeps the local result.
func (a *consoleApp) PromptManualRoll(_ context.Context, input *override.PromptManualRollInput) (*override.PromptManualRollOutput, error) {
	fmt.Printf("%s rolls %s (%s, local %d): enter die values or blank to keep> ",
		input.Actor.Name, input.Action, input.Result.Formula, input.Result.Total)
	if !a.stdin.Scan() {
		return &override.PromptManualRollOutput{}, nil
	}

	line := strings.TrimSpace(a.stdin.Text())
	if line == "" {
		return &override.PromptManualRollOutput{}, nil
	}

	groups, err := parseManualDice(line, input.Result)
	if err != nil {
		return nil, err
	}
	return &override.PromptManualRollOutput{Confirmed: true, Groups: groups}, nil
}

// parseManualDice distributes space-separated die values over the
// roll's terms in order, one group per term.
func parseManualDice(line string, result *dice.Roll) ([]dice.DieGroup, error) {
	fields := strings.Fields(line)
	values := make([]int, len(fields))
	for i, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.InvalidArgumentf("invalid die value %q", field)
		}
		values[i] = v
	}

	groups := make([]dice.DieGroup, 0, len(result.Terms))
	idx := 0
	for _, term := range result.Terms {
		group := dice.DieGroup{DieType: term.DieType()}
		for i := 0; i < len(term.Results) && idx < len(values); i++ {
			group.Results = append(group.Results, values[idx])
			idx++
		}
		group.Count = len(group.Results)
		groups = append(groups, group)
	}
	return groups, nil
}

// runRollLoop reads roll commands from stdin and evaluates them through
// the override orchestrator, so a remote-mode actor's command waits for
// dice from the table. Exits on stdin EOF.
func (a *consoleApp) runRollLoop(ctx context.Context, svc override.Service) {
	for a.stdin.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(a.stdin.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 4 || fields[0] != "roll" {
			fmt.Println("usage: roll <remoteId> <action> <formula>")
			continue
		}

		actor, ok := a.actorFor(fields[1])
		if !ok {
			fmt.Printf("no actor mapped for remote id %s\n", fields[1])
			continue
		}

		out, err := svc.EvaluateRoll(ctx, &override.EvaluateRollInput{
			Actor:   actor,
			Action:  fields[2],
			Formula: fields[3],
		})
		if err != nil {
			slog.Error("roll evaluation failed", "actor", actor.Name, "error", err)
			continue
		}
		fmt.Printf("%s %s: %d (%s, %s)\n",
			actor.Name, fields[2], out.Result.Total, out.Result.Formula, out.Source)
	}
}

// ApplyCharacterUpdate prints the changed hit point fields
func (a *consoleApp) ApplyCharacterUpdate(_ context.Context, input *engine.ApplyCharacterUpdateInput) (*engine.ApplyCharacterUpdateOutput, error) {
	update := input.Update.Update

	attrs := []any{"character_id", update.CharacterID}
	if update.RemovedHitPoints != nil {
		attrs = append(attrs, "removed_hp", *update.RemovedHitPoints)
	}
	if update.TemporaryHitPoints != nil {
		attrs = append(attrs, "temp_hp", *update.TemporaryHitPoints)
	}
	if update.MaxHitPoints != nil {
		attrs = append(attrs, "max_hp", *update.MaxHitPoints)
	}

	slog.Info("character update", attrs...)
	return &engine.ApplyCharacterUpdateOutput{}, nil
}

// NotifyConnected reports the session going live
func (a *consoleApp) NotifyConnected() {
	slog.Info("session connected")
}

// NotifyDisconnected reports the session ending; a terminal disconnect
// means the daemon should be restarted to resume.
func (a *consoleApp) NotifyDisconnected(terminal bool, err error) {
	if terminal {
		slog.Error("session lost, restart to resume", "error", err)
		return
	}
	slog.Info("session disconnected")
}

// NotifyCredentialExpired reports that a fresh token is needed
func (a *consoleApp) NotifyCredentialExpired() {
	slog.Warn("credential expired, supply a fresh token and restart")
}
