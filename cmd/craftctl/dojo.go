package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// dojoCmd groups the sabotage challenge commands
var dojoCmd = &cobra.Command{
	Use:   "dojo",
	Short: "Sabotage challenge commands",
	Long: `Play debugging challenges against a completed project. 'challenge'
plants a bug in one of the project's files; fix it in the workspace,
then run 'verify' to be judged.`,
}

func init() {
	dojoCmd.AddCommand(dojoChallengeCmd)
	dojoCmd.AddCommand(dojoVerifyCmd)
}

// dojoChallengeCmd starts a challenge
var dojoChallengeCmd = &cobra.Command{
	Use:   "challenge <project-id>",
	Short: "Sabotage a project file and start the clock",
	Args:  cobra.ExactArgs(1),
	RunE:  runDojoChallenge,
}

// dojoVerifyCmd verifies a fix
var dojoVerifyCmd = &cobra.Command{
	Use:   "verify <project-id>",
	Short: "Verify your fix for the active challenge",
	Args:  cobra.ExactArgs(1),
	RunE:  runDojoVerify,
}

// ChallengeInfo matches the orchestrator's challenge response.
type ChallengeInfo struct {
	ProjectID string `json:"project_id"`
	FilePath  string `json:"file_path"`
	Hint      string `json:"mission_hint"`
	Intel     string `json:"intel"`
}

// VerifyResult matches the orchestrator's verification response.
type VerifyResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"duration"`
}

func runDojoChallenge(cmd *cobra.Command, args []string) error {
	resp, err := postJSON(fmt.Sprintf("/api/projects/%s/dojo/challenge", args[0]), struct{}{}, 60*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	var info ChallengeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Challenge started on %s\n", info.FilePath)
	fmt.Printf("Hint:  %s\n", info.Hint)
	if info.Intel != "" {
		fmt.Printf("Intel: %s\n", info.Intel)
	}
	fmt.Printf("\nFix the file, then run: craftctl dojo verify %s\n", info.ProjectID)
	return nil
}

func runDojoVerify(cmd *cobra.Command, args []string) error {
	resp, err := postJSON(fmt.Sprintf("/api/projects/%s/dojo/verify", args[0]), struct{}{}, 60*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	var result VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Success {
		elapsed := time.Duration(result.Duration)
		fmt.Printf("Solved in %s: %s\n", elapsed.Round(time.Second), result.Message)
		return nil
	}
	fmt.Printf("Not yet: %s\n", result.Message)
	if result.Error != "" {
		fmt.Printf("\n%s\n", result.Error)
	}
	return fmt.Errorf("challenge not solved")
}
