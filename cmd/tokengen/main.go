package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-academy/pkg/tokencodec"
)

func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "Secret key for signing the token (defaults to $JWT_SECRET)")
	issuer := flag.String("issuer", "simple-academy", "Issuer of the token")
	audience := flag.String("audience", "simple-academy", "Audience of the token")
	purpose := flag.String("purpose", string(tokencodec.PurposeSession), "Token purpose: session, email_verification or course_access")
	subject := flag.String("subject", "", "Subject user id (random when empty)")
	email := flag.String("email", "student@example.com", "Email claim")
	name := flag.String("name", "Student", "Name claim")
	verified := flag.Bool("verified", true, "email_verified claim")
	course := flag.String("course", "", "Course reference, required for course_access tokens")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	decode := flag.String("decode", "", "Verify and print an existing token instead of signing one")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	codec, err := tokencodec.NewCodec(*secret,
		tokencodec.WithIssuer(*issuer),
		tokencodec.WithAudience(*audience),
	)
	if err != nil {
		fail("Invalid signing secret", err)
	}

	p := tokencodec.Purpose(*purpose)
	if !p.Valid() {
		fail("Unknown purpose", fmt.Errorf("%q", *purpose))
	}

	if *decode != "" {
		claims, err := codec.Verify(*decode, p)
		if err != nil {
			fail("Token rejected", err)
		}
		printJSON("Token Claims", claims)
		return
	}

	if p == tokencodec.PurposeCourseAccess && *course == "" {
		fail("Missing course", fmt.Errorf("-course is required for course_access tokens"))
	}
	if *subject == "" {
		*subject = uuid.NewString()
	}

	claims := tokencodec.Claims{
		Email:         *email,
		Name:          *name,
		EmailVerified: *verified,
		Purpose:       p,
		CourseRef:     *course,
	}
	claims.Subject = *subject

	tokenStr, expiresAt, err := codec.Sign(claims, *expiry)
	if err != nil {
		fail("Failed to sign token", err)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiresAt.Format(time.RFC3339))
	case "debug":
		decoded, err := codec.DecodeUnsafe(tokenStr)
		if err != nil {
			fail("Failed to decode generated token", err)
		}
		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n\n", tokenStr)
		printJSON("Token Claims", decoded)
		fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}

func printJSON(title string, v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("=== %s ===\n%s\n\n", title, out)
}

func fail(msg string, err error) {
	slog.Error(msg, "err", err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
