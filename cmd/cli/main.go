package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aaravkhatri/MeloQuery/internal/service"
	"github.com/aaravkhatri/MeloQuery/pkg/logger"
	"github.com/aaravkhatri/MeloQuery/pkg/meloquery"
)

// Global flags
var (
	dbPath  string
	tempDir string
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("MELOQUERY_DB_PATH", "meloquery.sqlite3"), "Path to the SQLite database file")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("MELOQUERY_TEMP_DIR", "/tmp/meloquery"), "Directory for temporary audio files")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService() (meloquery.Service, error) {
	return meloquery.NewService(
		meloquery.WithDBPath(dbPath),
		meloquery.WithTempDir(tempDir),
	)
}

func main() {
	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Infof("Executing command: %s", command)

	switch command {
	case "index":
		handleIndex()
	case "match":
		handleMatch()
	case "list":
		handleList()
	case "delete":
		handleDelete()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 __  __      _       ___
|  \/  | ___| | ___ / _ \ _   _  ___ _ __ _   _
| |\/| |/ _ \ |/ _ \ | | | | | |/ _ \ '__| | | |
| |  | |  __/ | (_) | |_| | |_| |  __/ |  | |_| |
|_|  |_|\___|_|\___/ \__\_\\__,_|\___|_|   \__, |
                                           |___/
          Query-by-Humming CLI Tool
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println("Usage: meloquery <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  index <file.mid|directory> [--title <title>]   Add MIDI melodies to the corpus")
	fmt.Println("  match <audio_file>                             Match a hummed/sung recording")
	fmt.Println("  match --youtube-url <url>                      Match audio from a YouTube video")
	fmt.Println("  list                                           List indexed songs")
	fmt.Println("  delete <song_id>                               Remove a song from the corpus")
	fmt.Println()
	fmt.Println("Global options:")
	fmt.Println("  -db <path>    SQLite database path (env MELOQUERY_DB_PATH)")
	fmt.Println("  -temp <dir>   Temp directory (env MELOQUERY_TEMP_DIR)")
}

func handleIndex() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: meloquery index <file.mid|directory> [--title <title>]")
		os.Exit(1)
	}
	target := os.Args[2]

	indexCmd := flag.NewFlagSet("index", flag.ExitOnError)
	title := indexCmd.String("title", "", "Song title (defaults to the file name)")
	indexCmd.Parse(os.Args[3:])

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	info, err := os.Stat(target)
	if err != nil {
		fmt.Printf("Cannot access %s: %v\n", target, err)
		os.Exit(1)
	}

	if info.IsDir() {
		fmt.Printf("Indexing MIDI files from %s ...\n", target)
		report, err := svc.IndexDirectory(ctx, target)
		if err != nil {
			fmt.Printf("Indexing failed: %v\n", err)
			log.Errorf("IndexDirectory failed: %v", err)
			os.Exit(1)
		}
		fmt.Printf("\nIndexed %d song(s)\n", len(report.Added))
		for _, song := range report.Added {
			fmt.Printf("  + %s (%s)\n", song.Title, song.ID)
		}
		if len(report.Skipped) > 0 {
			fmt.Printf("\nSkipped %d file(s):\n", len(report.Skipped))
			for _, skip := range report.Skipped {
				fmt.Printf("  - %s: %s\n", skip.Path, skip.Reason)
			}
		}
		return
	}

	songID, err := svc.IndexSong(ctx, target, *title)
	if err != nil {
		fmt.Printf("Failed to index song: %v\n", err)
		log.Errorf("IndexSong failed: %v", err)
		os.Exit(1)
	}
	fmt.Println("\nSuccessfully indexed song!")
	fmt.Printf("   ID: %s\n", songID)
}

func handleMatch() {
	log := logger.GetLogger()

	matchCmd := flag.NewFlagSet("match", flag.ExitOnError)
	youtubeURL := matchCmd.String("youtube-url", "", "YouTube URL to download and match")

	var audioPath string
	args := os.Args[2:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		audioPath = args[0]
		args = args[1:]
	}
	matchCmd.Parse(args)

	if audioPath == "" && *youtubeURL == "" {
		fmt.Println("Usage: meloquery match <audio_file>")
		fmt.Println("   OR: meloquery match --youtube-url <url>")
		os.Exit(1)
	}
	if audioPath != "" && *youtubeURL != "" {
		fmt.Println("Error: cannot specify both an audio file and --youtube-url")
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("Listening for a melody ...")

	var response *service.MatchResponse
	if *youtubeURL != "" {
		response, err = svc.MatchYouTube(ctx, *youtubeURL)
	} else {
		response, err = svc.MatchClip(ctx, audioPath)
	}
	if err != nil {
		if errors.Is(err, meloquery.ErrNoSignal) {
			fmt.Println("\nCould not hear a melody in that recording.")
			fmt.Println("Try humming louder, closer to the microphone, for at least 10 seconds.")
			return
		}
		fmt.Printf("\nFailed to match: %v\n", err)
		log.Errorf("Match failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\nScanned %d window(s), %d usable, clip %.1fs\n",
		response.Stats.WindowsGenerated, response.Stats.WindowsUsable, response.ClipSeconds)
	fmt.Println("\nTop Matches:")
	fmt.Println()
	for i, r := range response.Results {
		fmt.Printf("%d. %q\n", i+1, r.Title)
		if r.Matched {
			fmt.Printf("   Similarity: %.1f%% | Cost: %.3f | Best window: %.0fs (%d intervals)\n",
				r.Similarity, r.Cost, r.WindowStart, r.WindowLen)
		} else {
			fmt.Println("   No alignment found")
		}
		fmt.Println()
	}
}

func handleList() {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	songs, err := svc.ListSongs()
	if err != nil {
		fmt.Printf("Failed to list songs: %v\n", err)
		log.Errorf("ListSongs failed: %v", err)
		os.Exit(1)
	}

	if len(songs) == 0 {
		fmt.Println("\nNo songs in corpus")
		return
	}

	fmt.Printf("\n%d song(s) in corpus:\n\n", len(songs))
	for _, song := range songs {
		fmt.Printf("  %s  %-30s  %d notes\n", song.ID, song.Title, song.NoteCount)
	}
}

func handleDelete() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: meloquery delete <song_id>")
		os.Exit(1)
	}
	songID := os.Args[2]

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.DeleteSong(songID); err != nil {
		fmt.Printf("Failed to delete song: %v\n", err)
		log.Errorf("DeleteSong failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted song %s\n", songID)
}
