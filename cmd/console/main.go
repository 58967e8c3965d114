// Command console is the single-device fallback scorekeeper: no server, no
// database, the whole ledger lives in a local BoltDB file. It exists for
// venues where the realtime path is down; the results are exported by hand
// afterwards.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/apexscore/live-scoring/localstate"
	"github.com/apexscore/live-scoring/models"
)

func main() {
	var (
		dbPath     = flag.String("db", "live-scoring.db", "path to the local snapshot file")
		name       = flag.String("name", "Local Tournament", "tournament name")
		totalGames = flag.Int("games", 6, "number of planned games")
		teamsFlag  = flag.String("teams", "", "roster, e.g. 'Alpha:p1,p2;Bravo:p3,p4'")
		operator   = flag.String("operator", "console@local", "operator identity recorded on every event")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	teams, err := parseTeams(*teamsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	tournament := &models.Tournament{
		ID:                1,
		Name:              *name,
		Status:            models.StatusLobby,
		CurrentGame:       1,
		TotalGames:        *totalGames,
		PlacementConfig:   models.DefaultPlacementConfig(),
		KillPointsPerKill: 1,
	}

	store, err := localstate.NewSnapshotStore(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	manager, err := localstate.NewManager(tournament, teams, store, *operator, logger)
	if err != nil {
		store.Close()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer manager.Close()

	fmt.Printf("%s: %d teams, %d games planned. Type 'help' for commands.\n", tournament.Name, len(teams), tournament.TotalGames)
	repl(manager)
}

func parseTeams(spec string) ([]models.Team, error) {
	if spec == "" {
		return nil, fmt.Errorf("-teams is required, e.g. 'Alpha:p1,p2;Bravo:p3,p4'")
	}
	var teams []models.Team
	for i, part := range strings.Split(spec, ";") {
		name, playerList, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid team entry %q", part)
		}
		var players []string
		for _, p := range strings.Split(playerList, ",") {
			if p = strings.TrimSpace(p); p != "" {
				players = append(players, p)
			}
		}
		teams = append(teams, models.Team{
			ID:           i + 1,
			TournamentID: 1,
			Name:         strings.TrimSpace(name),
			Players:      players,
		})
	}
	return teams, nil
}

func repl(manager *localstate.Manager) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "help":
			printHelp()
		case "start":
			err = manager.Start()
		case "kill":
			err = withTeamID(fields, manager.RecordKill)
		case "wipe":
			err = withTeamID(fields, manager.EliminateTeam)
		case "down":
			if len(fields) != 3 {
				err = fmt.Errorf("usage: down <teamID> <playerIdx>")
				break
			}
			var teamID, playerIdx int
			if teamID, err = strconv.Atoi(fields[1]); err != nil {
				break
			}
			if playerIdx, err = strconv.Atoi(fields[2]); err != nil {
				break
			}
			err = manager.EliminatePlayer(teamID, playerIdx)
		case "end":
			err = endGame(manager, fields[1:])
		case "undo":
			var event *models.TournamentEvent
			if event, err = manager.Undo(); err == nil {
				if event == nil {
					fmt.Println("nothing to undo")
				} else {
					fmt.Printf("undid %s (event %d)\n", event.EventType, event.ID)
				}
			}
		case "reopen":
			_, err = manager.Reopen()
		case "board":
			printBoard(manager)
		case "log":
			printLog(manager)
		case "quit", "exit":
			return
		default:
			err = fmt.Errorf("unknown command %q, try 'help'", fields[0])
		}
		if err != nil {
			fmt.Println("error:", err)
		}
	}
}

func withTeamID(fields []string, fn func(int) error) error {
	if len(fields) != 2 {
		return fmt.Errorf("usage: %s <teamID>", fields[0])
	}
	teamID, err := strconv.Atoi(fields[1])
	if err != nil {
		return err
	}
	return fn(teamID)
}

// endGame parses "end teamID:placement ..." pairs, one per surviving team.
func endGame(manager *localstate.Manager, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: end <teamID:placement> ...")
	}
	var placements []localstate.PlacementInput
	for _, arg := range args {
		teamStr, placeStr, ok := strings.Cut(arg, ":")
		if !ok {
			return fmt.Errorf("invalid placement %q, want teamID:placement", arg)
		}
		teamID, err := strconv.Atoi(teamStr)
		if err != nil {
			return err
		}
		placement, err := strconv.Atoi(placeStr)
		if err != nil {
			return err
		}
		placements = append(placements, localstate.PlacementInput{TeamID: teamID, Placement: placement})
	}
	event, err := manager.EndGame(placements)
	if err != nil {
		return err
	}
	fmt.Printf("game %d recorded (event %d)\n", event.GameNumber, event.ID)
	printBoard(manager)
	return nil
}

func printBoard(manager *localstate.Manager) {
	tournament := manager.Tournament()
	fmt.Printf("%s [%s] game %d/%d\n", tournament.Name, tournament.Status, tournament.CurrentGame, tournament.TotalGames)
	for _, standing := range manager.Projection().Teams {
		fmt.Printf("  %2d. %-20s %4d pts (kills %d, placement %d)\n",
			standing.Rank, standing.Name, standing.TotalPoints, standing.KillPoints, standing.PlacementPoints)
	}
}

func printLog(manager *localstate.Manager) {
	for _, event := range manager.Events() {
		marker := " "
		if event.Undone {
			marker = "x"
		}
		fmt.Printf("%s %4d %-20s game %d by %s\n", marker, event.ID, event.EventType, event.GameNumber, event.ActorEmail)
	}
}

func printHelp() {
	fmt.Println(`commands:
  start                      begin the tournament
  kill <teamID>              credit a kill to a team
  down <teamID> <playerIdx>  mark one player eliminated
  wipe <teamID>              eliminate a whole team
  end <teamID:placement>...  record the game result
  undo                       undo the last action
  reopen                     reopen a finished tournament
  board                      show the standings
  log                        show the event ledger
  quit`)
}
