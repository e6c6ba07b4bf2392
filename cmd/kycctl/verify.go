package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vericore/internal/app"
	"vericore/internal/kyc/capture"
	kyc "vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
	id "vericore/pkg/domain"
)

// documentArg is one --doc flag: "Passport=front.jpg,back.jpg".
type documentArg struct {
	Type  string
	Front string
	Back  string
}

func parseDocumentArg(raw string) (documentArg, error) {
	name, files, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(files) == "" {
		return documentArg{}, fmt.Errorf("--doc must look like \"PAN Card=front.jpg\" or \"Passport=front.jpg,back.jpg\", got %q", raw)
	}
	front, back, _ := strings.Cut(files, ",")
	return documentArg{Type: strings.TrimSpace(name), Front: strings.TrimSpace(front), Back: strings.TrimSpace(back)}, nil
}

func (c *cli) verifyCmd() *cobra.Command {
	var (
		docs    []string
		selfie  string
		code    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run a verification from image files and submit the result for review",
		Long: "verify walks the capture wizard with pre-taken photos: each --doc is selected and checked\n" +
			"in order, then the --selfie is matched. The selfie must show the challenge code,\n" +
			"so pass the code it was taken with using --code.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(docs) == 0 || selfie == "" {
				return fmt.Errorf("at least one --doc and a --selfie are required")
			}
			parsed := make([]documentArg, 0, len(docs))
			for _, raw := range docs {
				d, err := parseDocumentArg(raw)
				if err != nil {
					return err
				}
				parsed = append(parsed, d)
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return c.runVerification(ctx, a, parsed, selfie, code)
			})
		},
	}
	cmd.Flags().StringArrayVar(&docs, "doc", nil, "Document and its image files, e.g. \"Passport=front.jpg,back.jpg\" (repeatable)")
	cmd.Flags().StringVar(&selfie, "selfie", "", "Selfie image holding the challenge code")
	cmd.Flags().StringVar(&code, "code", "", "Challenge code shown in the selfie (default random)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "Overall time limit")
	return cmd
}

func (c *cli) runVerification(ctx context.Context, a *app.App, docs []documentArg, selfiePath, code string) error {
	snap, err := a.Settings.Current(ctx)
	if err != nil {
		return err
	}

	challenge := kyc.NewChallenge(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)), snap.Settings.RequireLivenessGesture)
	if code != "" {
		challenge.Code = code
	}
	session := kyc.NewSession(id.NewSessionID(), challenge, "kycctl", time.Now())
	env := capture.Env{
		Catalog:    snap.Catalog,
		Settings:   snap.Settings,
		Thresholds: snap.Thresholds,
		Cooldown:   a.Config.Capture.Cooldown,
	}
	orch := capture.NewOrchestrator(session, env, a.Recognizer,
		capture.WithLogger(a.Logger),
		capture.WithRecordSink(a.Review),
		capture.WithAuditor(a.Audit),
		capture.WithAutoAdvance(0),
	)
	defer orch.Close()

	fmt.Fprintf(os.Stderr, "case %s, challenge: %s\n", session.CaseRef, challenge.Instruction())

	var v capture.View
	for _, d := range docs {
		if v, err = c.captureDocument(ctx, orch, d); err != nil {
			return err
		}
		if v.Step.IsTerminal() {
			break
		}
	}

	if v.Step == capture.StepSelectDocument {
		if v, err = orch.Dispatch(ctx, capture.Proceed{}); err != nil {
			return err
		}
	}
	if v.Step == capture.StepCaptureLiveness {
		img, err := readImage(selfiePath)
		if err != nil {
			return err
		}
		if v, err = dispatchAndWait(ctx, orch, capture.CapturePhoto{Image: img}); err != nil {
			return err
		}
		if err := stepError(v, "selfie"); err != nil {
			return err
		}
	}
	if v.Step != capture.StepResult {
		return fmt.Errorf("verification stopped in step %s", v.Step)
	}

	return c.print(v, func(w io.Writer) {
		fmt.Fprintf(w, "Case\t%s\nSession\t%s\n", v.CaseRef, v.SessionID)
		if v.Outcome != nil {
			fmt.Fprintf(w, "Status\t%s\nRisk\t%s\nReason\t%s\n", v.Outcome.Status, v.Outcome.Risk, v.Outcome.Reason)
		}
		fmt.Fprintf(w, "Face match\t%d\nLiveness\t%t\n", v.FaceMatchScore, v.LivenessVerified)
		if len(v.Mismatches) > 0 {
			fmt.Fprintf(w, "Mismatches\t%s\n", strings.Join(v.Mismatches, ", "))
		}
		if v.RejectionReason != "" {
			fmt.Fprintf(w, "Rejection reason\t%s\n", v.RejectionReason)
		}
	})
}

// captureDocument selects d and sends its photos, returning the view once the
// check has settled.
func (c *cli) captureDocument(ctx context.Context, orch *capture.Orchestrator, d documentArg) (capture.View, error) {
	v, err := orch.Dispatch(ctx, capture.SelectDocument{Type: d.Type})
	if err != nil {
		return v, err
	}
	front, err := readImage(d.Front)
	if err != nil {
		return v, err
	}
	if v, err = dispatchAndWait(ctx, orch, capture.CapturePhoto{Image: front}); err != nil {
		return v, err
	}
	if v.Step == capture.StepCaptureDocument && v.Side == capture.SideBack {
		if d.Back == "" {
			return v, fmt.Errorf("%s needs a back image: --doc \"%s=front.jpg,back.jpg\"", d.Type, d.Type)
		}
		back, err := readImage(d.Back)
		if err != nil {
			return v, err
		}
		if v, err = dispatchAndWait(ctx, orch, capture.CapturePhoto{Image: back}); err != nil {
			return v, err
		}
	}
	return v, stepError(v, d.Type)
}

func dispatchAndWait(ctx context.Context, orch *capture.Orchestrator, ev capture.Event) (capture.View, error) {
	if _, err := orch.Dispatch(ctx, ev); err != nil {
		return capture.View{}, err
	}
	return orch.Await(ctx)
}

// stepError turns the steps that need a customer decision into errors.
func stepError(v capture.View, what string) error {
	switch v.Step {
	case capture.StepDocumentRejected, capture.StepLivenessRejected:
		return fmt.Errorf("%s rejected: %s", what, feedbackText(v.Feedback))
	case capture.StepRateLimited:
		return fmt.Errorf("recognition is rate limited, try again in %ds", v.CooldownSeconds)
	case capture.StepCameraDenied:
		return fmt.Errorf("%s: %s", what, feedbackText(v.Feedback))
	}
	return nil
}

func feedbackText(fb *recognition.Feedback) string {
	if fb == nil {
		return "no details"
	}
	if fb.Tip == "" {
		return fb.Title
	}
	return fb.Title + ". " + fb.Tip
}

func readImage(path string) (recognition.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return recognition.Image{}, err
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return recognition.Image{}, fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return recognition.Image{MIMEType: mime, Data: data}, nil
}
