package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavelanni/exammgr/internal/directory"
	"github.com/pavelanni/exammgr/internal/exam"
	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON",
		RunE:  runExport,
	}
	dbFlags(cmd)
	f := cmd.Flags()
	f.Int64("exam-id", 0, "Export a single exam (0 = all exams)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Append questions from a delimited-text file to an exam",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	dbFlags(cmd)
	f := cmd.Flags()
	f.Int64("exam-id", 0, "Target exam (required)")
	f.Bool("force", false, "Import even if this file was imported before")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func useraddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "useradd USERNAME",
		Short: "Create an account of any role",
		Args:  cobra.ExactArgs(1),
		RunE:  runUseradd,
	}
	dbFlags(cmd)
	f := cmd.Flags()
	f.String("password", "", "Account password (required)")
	f.String("role", string(model.RoleStudent), "Role ("+model.RoleNames()+")")
	f.String("department", "", "Department code for department roles")
	f.String("first-name", "", "First name")
	f.String("last-name", "", "Last name")
	f.String("email", "", "Email address")
	f.String("external-id", "", "Student or staff number")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportResults(v.GetInt64("exam-id"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "exams", len(export.Exams), "output", outPath)
	return nil
}

// runImport loads a file once per content hash and exam; re-running with the same
// file and exam is a no-op.
func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	hash := sha256sum(data)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	examID := v.GetInt64("exam-id")
	prev, err := db.GetImportedFile(hash, examID)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", path, err)
	}
	if prev != nil && !v.GetBool("force") {
		slog.Info("file already imported, skipping",
			"path", path, "exam_id", prev.ExamID, "questions", prev.QuestionCount, "imported_at", prev.ImportedAt)
		return nil
	}

	e, err := db.GetExam(examID)
	if err != nil {
		return fmt.Errorf("get exam %d: %w", examID, err)
	}
	if e == nil {
		return fmt.Errorf("exam %d: %w", examID, model.ErrNotFound)
	}
	owner, err := db.GetUserByID(e.FacultyID)
	if err != nil {
		return fmt.Errorf("get exam owner: %w", err)
	}
	if owner == nil {
		return fmt.Errorf("owner of exam %d: %w", examID, model.ErrNotFound)
	}

	// Imports run on behalf of the exam's author so ownership rules still apply.
	mgr := exam.NewManager(db, nil, nil, 0)
	n, err := mgr.ImportDelimited(owner.Actor(), examID, string(data))
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	if err := db.RecordImportedFile(store.ImportedFile{
		Hash:          hash,
		Filename:      filepath.Base(path),
		ExamID:        examID,
		QuestionCount: n,
	}); err != nil {
		return fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported questions", "path", path, "exam_id", examID, "count", n)
	return nil
}

func runUseradd(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	role, err := model.ParseRole(v.GetString("role"))
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	var deptID *int64
	if code := v.GetString("department"); code != "" {
		d, err := db.GetDepartmentByCode(strings.ToUpper(code))
		if err != nil {
			return fmt.Errorf("get department %s: %w", code, err)
		}
		if d == nil {
			return fmt.Errorf("department %s: %w", code, model.ErrNotFound)
		}
		deptID = &d.ID
	}

	u, err := directory.New(db).Bootstrap(directory.NewUser{
		Username:     args[0],
		Password:     v.GetString("password"),
		FirstName:    v.GetString("first-name"),
		LastName:     v.GetString("last-name"),
		Email:        v.GetString("email"),
		Role:         role,
		DepartmentID: deptID,
		ExternalID:   v.GetString("external-id"),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", u.Role, u.Username, u.ID)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
