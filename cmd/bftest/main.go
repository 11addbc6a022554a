// bftest compiles every test program to program text, runs that text on the
// built-in interpreter with a fixed set of inputs and compares the result
// with the program's golden file. With -target-args it also builds a native
// executable through another backend and checks it against the interpreter.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type TestRun struct {
	Name   string    `json:"name"`
	Input  string    `json:"input,omitempty"`
	Result Execution `json:"result"`
}

type TargetResult struct {
	BinaryPath string    `json:"binary_path,omitempty"`
	Compile    Execution `json:"compile"`
	Runs       []TestRun `json:"runs"`
}

type FileTestResult struct {
	File      string        `json:"file"`
	Hash      string        `json:"hash,omitempty"`
	Status    string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message   string        `json:"message,omitempty"`
	Diff      string        `json:"diff,omitempty"`
	Reference *TargetResult `json:"reference,omitempty"`
	Target    *TargetResult `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	compiler       = flag.String("bfc", "./bfc", "Path to the bfc binary under test.")
	compilerArgs   = flag.String("args", "", "Extra arguments for every bfc invocation (space-separated).")
	targetArgs     = flag.String("target-args", "", "Build a native executable with these arguments (e.g. \"-t c\") and compare it with the interpreter.")
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given source file.")
	testFiles      = flag.String("test-files", "tests/*.bfs", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	useCache       = flag.Bool("cached", false, "Reuse passing results from the previous report when the source is unchanged.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
)

// testInputs are fed to every program on stdin.
var testInputs = map[string]string{
	"empty":  "",
	"line":   "Hello, tape!\n",
	"digits": "0123456789\n",
}

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "bftest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden, tempDir)
		return
	}

	handleRunTestSuite(tempDir)
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func handleGenerateGolden(sourceFile, tempDir string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)

	fileHash, err := hashFile(sourceFile)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not hash source file %s: %v\n", cRed, cNone, sourceFile, err)
	}

	result, err := compileAndInterpret(sourceFile, tempDir, fileHash)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not generate golden file for %s: %v\n%s", cRed, cNone, sourceFile, err, result.Compile.Stderr)
	}
	result.Compile.Duration = 0
	for i := range result.Runs {
		result.Runs[i].Result.Duration = 0
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}

	goldenFileName := getJSONPath(sourceFile)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(goldenFileName, append(jsonData, '\n'), 0644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFileName, err)
	}

	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFileName)
}

func reportPath() string {
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, *outputJSON)
	}
	return *outputJSON
}

func handleRunTestSuite(tempDir string) {
	if _, err := exec.LookPath(*compiler); err != nil {
		log.Fatalf("%s[ERROR]%s bfc binary '%s' not found: %v\n", cRed, cNone, *compiler, err)
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	previousResults := make(TestSuiteResults)
	if *useCache {
		if prevData, err := os.ReadFile(reportPath()); err == nil {
			if json.Unmarshal(prevData, &previousResults) != nil {
				log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, reportPath())
				previousResults = make(TestSuiteResults)
			}
		}
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	type task struct{ file, hash string }
	tasks := make(chan task, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				result := testFile(t.file, tempDir, t.hash)
				result.Hash = t.hash
				resultsChan <- result
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		if prev, ok := previousResults[file]; ok && prev.Status == "PASS" && prev.Hash == fileHash {
			prev.Message = "Unchanged since the previous run (cached)"
			resultsChan <- prev
			continue
		}
		tasks <- task{file, fileHash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults)

	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

func testFile(file, tempDir, fileHash string) *FileTestResult {
	refResult, err := compileAndInterpret(file, tempDir, fileHash)
	if err != nil {
		return &FileTestResult{
			File:      file,
			Status:    "FAIL",
			Message:   "bfc failed to compile the program",
			Diff:      fmt.Sprintf("bfc STDERR:\n%s", refResult.Compile.Stderr),
			Reference: refResult,
		}
	}

	goldenFile := getJSONPath(file)
	if goldenData, err := os.ReadFile(goldenFile); err == nil {
		var golden TargetResult
		if err := json.Unmarshal(goldenData, &golden); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
		}
		if result := compareRuntimeResults(file, &golden, refResult); result.Status != "PASS" {
			result.Message += " (interpreter against golden file)"
			return result
		}
	} else if *targetArgs == "" {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
	}

	if *targetArgs == "" {
		return &FileTestResult{File: file, Status: "PASS", Message: "Interpreter output matches the golden file", Reference: refResult}
	}

	targetResult, err := compileNative(file, tempDir, fileHash)
	if err != nil {
		return &FileTestResult{
			File:      file,
			Status:    "FAIL",
			Message:   "Native build failed, but the interpreter run succeeded",
			Diff:      fmt.Sprintf("bfc STDERR:\n%s", targetResult.Compile.Stderr),
			Reference: refResult,
			Target:    targetResult,
		}
	}
	result := compareRuntimeResults(file, refResult, targetResult)
	if result.Status == "PASS" {
		result.Message = "Native build matches the interpreter"
	}
	return result
}

func compareRuntimeResults(file string, refResult, targetResult *TargetResult) *FileTestResult {
	var diffs strings.Builder
	var failed bool

	targetRuns := make(map[string]TestRun)
	for _, run := range targetResult.Runs {
		targetRuns[run.Name] = run
	}
	sort.Slice(refResult.Runs, func(i, j int) bool {
		return refResult.Runs[i].Name < refResult.Runs[j].Name
	})

	for _, refRun := range refResult.Runs {
		targetRun, ok := targetRuns[refRun.Name]
		if !ok {
			failed = true
			diffs.WriteString(fmt.Sprintf("Test run '%s' missing in target results.\n", refRun.Name))
			continue
		}
		if refRun.Result.ExitCode != targetRun.Result.ExitCode {
			failed = true
			diffs.WriteString(fmt.Sprintf("Run '%s' Exit Code mismatch:\n  - Ref:    %d\n  - Target: %d\n", refRun.Name, refRun.Result.ExitCode, targetRun.Result.ExitCode))
		}
		if refRun.Result.Stdout != targetRun.Result.Stdout {
			failed = true
			diffs.WriteString(fmt.Sprintf("Run '%s' STDOUT mismatch:\n%s", refRun.Name, cmp.Diff(refRun.Result.Stdout, targetRun.Result.Stdout)))
		}
		if refRun.Result.Stderr != targetRun.Result.Stderr {
			failed = true
			diffs.WriteString(fmt.Sprintf("Run '%s' STDERR mismatch:\n%s", refRun.Name, cmp.Diff(refRun.Result.Stderr, targetRun.Result.Stderr)))
		}
	}

	if failed {
		return &FileTestResult{
			File:      file,
			Status:    "FAIL",
			Message:   "Runtime output or exit code mismatch",
			Diff:      diffs.String(),
			Reference: refResult,
			Target:    targetResult,
		}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "All test cases passed", Reference: refResult, Target: targetResult}
}

// executeCommand runs a command with a timeout and captures its output, optionally piping data to stdin
func executeCommand(ctx context.Context, command string, stdinData string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = strings.NewReader(stdinData)

	err := cmd.Run()
	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	if ctx.Err() == context.DeadlineExceeded {
		execResult.TimedOut = true
		execResult.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			execResult.ExitCode = exitErr.ExitCode()
		} else {
			execResult.ExitCode = -2
			execResult.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return execResult
}

func runCompiler(args ...string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	allArgs := append(strings.Fields(*compilerArgs), args...)
	return executeCommand(ctx, *compiler, "", allArgs...)
}

// runCases runs command once per test input, passing args before the input.
func runCases(command string, args ...string) []TestRun {
	names := make([]string, 0, len(testInputs))
	for name := range testInputs {
		names = append(names, name)
	}
	sort.Strings(names)

	runs := make([]TestRun, 0, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		result := executeCommand(ctx, command, testInputs[name], args...)
		cancel()
		runs = append(runs, TestRun{Name: name, Input: testInputs[name], Result: result})
		if *verbose {
			log.Printf("[%s] %s %s: exit %d in %s", name, command, strings.Join(args, " "), result.ExitCode, formatDuration(result.Duration))
		}
	}
	return runs
}

// compileAndInterpret compiles sourceFile to program text and runs the text
// with `bfc --run`, so both the front end and the program text reader are
// exercised.
func compileAndInterpret(sourceFile, tempDir, fileHash string) (*TargetResult, error) {
	textPath := filepath.Join(tempDir, fileHash+".bf")
	compileResult := runCompiler("-t", "bf", "-o", textPath, sourceFile)
	if compileResult.ExitCode != 0 || compileResult.TimedOut {
		return &TargetResult{Compile: compileResult}, fmt.Errorf("compilation failed with exit code %d", compileResult.ExitCode)
	}
	args := append(strings.Fields(*compilerArgs), "--run", textPath)
	return &TargetResult{Compile: compileResult, Runs: runCases(*compiler, args...)}, nil
}

func compileNative(sourceFile, tempDir, fileHash string) (*TargetResult, error) {
	binaryPath := filepath.Join(tempDir, fileHash+"-native")
	args := append(strings.Fields(*targetArgs), "-o", binaryPath, sourceFile)
	compileResult := runCompiler(args...)
	if compileResult.ExitCode != 0 || compileResult.TimedOut {
		return &TargetResult{Compile: compileResult}, fmt.Errorf("compilation failed with exit code %d", compileResult.ExitCode)
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		return &TargetResult{Compile: compileResult}, fmt.Errorf("compilation succeeded but binary was not created at %s", binaryPath)
	}
	return &TargetResult{Compile: compileResult, Runs: runCases(binaryPath), BinaryPath: binaryPath}, nil
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func totalRuntime(r *TargetResult) time.Duration {
	var total time.Duration
	for _, run := range r.Runs {
		total += run.Result.Duration
	}
	return total
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if *verbose && result.Status == "PASS" && result.Reference != nil {
			fmt.Printf("  [compile: %s | interpreter: %s]\n", formatDuration(result.Reference.Compile.Duration), formatDuration(totalRuntime(result.Reference)))
			if result.Target != nil {
				fmt.Printf("  [native build: %s | native runs: %s]\n", formatDuration(result.Target.Compile.Duration), formatDuration(totalRuntime(result.Target)))
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(reportPath(), jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, reportPath(), err)
	} else {
		fmt.Printf("Full test report saved to %s\n", reportPath())
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
