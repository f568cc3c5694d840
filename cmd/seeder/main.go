package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"
)

// Seeds the ingest endpoint with synthetic innings so the pipeline can be
// exercised end to end without a live stat feed.

type record struct {
	MatchID      string  `json:"match_id"`
	PlayerID     string  `json:"player_id"`
	PlayerName   string  `json:"player_name"`
	TeamID       string  `json:"team_id"`
	OppositionID string  `json:"opposition_id"`
	VenueID      string  `json:"venue_id"`
	Role         string  `json:"role"`
	Importance   float64 `json:"importance"`
	Timestamp    float64 `json:"timestamp"`
	Runs         float64 `json:"runs"`
	BallsFaced   float64 `json:"balls_faced"`
	Wickets      float64 `json:"wickets"`
	Overs        float64 `json:"overs"`
	RunsConceded float64 `json:"runs_conceded"`
}

var (
	teams  = []string{"team-mi", "team-csk", "team-rcb", "team-kkr"}
	venues = []string{"venue-wankhede", "venue-chepauk", "venue-chinnaswamy"}
	roles  = []string{"Batsman", "Bowler", "AllRounder", "WicketKeeper"}
)

func main() {
	var (
		apiURL  = flag.String("url", "http://localhost:8080/api/v1/ingest/records", "ingest endpoint")
		token   = flag.String("token", "seed-secret-123", "feed token")
		players = flag.Int("players", 20, "number of synthetic players")
		matches = flag.Int("matches", 60, "innings per player")
		seed    = flag.Int64("seed", 42, "RNG seed")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0

	base := time.Now().AddDate(0, -6, 0)
	for p := 0; p < *players; p++ {
		playerID := fmt.Sprintf("player-%03d", p)
		role := roles[p%len(roles)]
		team := teams[p%len(teams)]

		for m := 0; m < *matches; m++ {
			opposition := teams[(p+m+1)%len(teams)]
			if opposition == team {
				opposition = teams[(p+m+2)%len(teams)]
			}

			rec := record{
				MatchID:      fmt.Sprintf("match-%03d-%03d", p, m),
				PlayerID:     playerID,
				PlayerName:   fmt.Sprintf("Player %03d", p),
				TeamID:       team,
				OppositionID: opposition,
				VenueID:      venues[(p+m)%len(venues)],
				Role:         role,
				Importance:   0.3 + 0.7*rng.Float64(),
				Timestamp:    float64(base.AddDate(0, 0, m*3).Unix()),
			}

			switch role {
			case "Bowler":
				rec.Runs = float64(rng.Intn(15))
				rec.BallsFaced = rec.Runs + float64(rng.Intn(10))
				rec.Wickets = float64(rng.Intn(5))
				rec.Overs = 4
				rec.RunsConceded = 20 + float64(rng.Intn(25))
			case "AllRounder":
				rec.Runs = float64(rng.Intn(45))
				rec.BallsFaced = rec.Runs*0.8 + float64(rng.Intn(15))
				rec.Wickets = float64(rng.Intn(3))
				rec.Overs = float64(1 + rng.Intn(4))
				rec.Overs = float64(int(rec.Overs))
				rec.RunsConceded = rec.Overs * (6 + 4*rng.Float64())
			default:
				rec.Runs = float64(rng.Intn(80))
				rec.BallsFaced = rec.Runs*0.7 + float64(rng.Intn(20)) + 1
			}

			if err := enc.Encode(rec); err != nil {
				log.Fatalf("encode: %v", err)
			}
			count++
		}
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL, &buf)
	if err != nil {
		log.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Feed-Token", *token)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("send: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Sent %d records\nStatus: %s\nResponse: %s\n", count, resp.Status, string(body))
}
