package mail

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Outbound email bodies. Placeholders are substituted verbatim:
// $fullname, $link, $emailId.

const verificationBody = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <p>Hi $fullname,</p>
  <p>Thank you for creating an account with us. Please confirm your email
  address by clicking the link below.</p>
  <p><a href="$link">Verify your email address</a></p>
  <p>If the link does not work, copy and paste it into your browser:</p>
  <p>$link</p>
  <p>If you did not create this account, you can safely ignore this email.</p>
  <p>Regards,<br>The Account Team</p>
</body>
</html>`

const passwordResetBody = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <p>Hi $fullname,</p>
  <p>We received a request to reset the password for $emailId. Click the
  link below to choose a new password.</p>
  <p><a href="$link">Reset your password</a></p>
  <p>This link expires in 24 hours. If you did not request a reset, no
  action is needed and your password remains unchanged.</p>
  <p>Regards,<br>The Account Team</p>
</body>
</html>`

const passwordChangedBody = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <p>Hi $fullname,</p>
  <p>The password for $emailId was just changed. If this was you, no
  further action is needed.</p>
  <p>If you did not make this change, please contact support immediately
  at $link.</p>
  <p>Regards,<br>The Account Team</p>
</body>
</html>`

// Templates holds the outbound message bodies. Construct via
// DefaultTemplates or LoadTemplates.
type Templates struct {
	verification    string
	passwordReset   string
	passwordChanged string
}

// DefaultTemplates returns the built-in bodies.
func DefaultTemplates() *Templates {
	return &Templates{
		verification:    verificationBody,
		passwordReset:   passwordResetBody,
		passwordChanged: passwordChangedBody,
	}
}

// LoadTemplates reads message bodies from dir, keeping the built-in body
// for any file that does not exist. A missing directory behaves like an
// empty one.
func LoadTemplates(dir string) (*Templates, error) {
	t := DefaultTemplates()
	if dir == "" {
		return t, nil
	}

	files := []struct {
		name string
		dst  *string
	}{
		{"verification.html", &t.verification},
		{"password_reset.html", &t.passwordReset},
		{"password_changed.html", &t.passwordChanged},
	}

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read mail template %s: %w", f.name, err)
		}
		*f.dst = string(data)
	}

	return t, nil
}

// RenderVerification builds the email-verification message body.
func (t *Templates) RenderVerification(fullname, link string) string {
	return render(t.verification, fullname, link, "")
}

// RenderPasswordReset builds the password-reset message body.
func (t *Templates) RenderPasswordReset(fullname, link, email string) string {
	return render(t.passwordReset, fullname, link, email)
}

// RenderPasswordChanged builds the password-changed notification body.
func (t *Templates) RenderPasswordChanged(fullname, supportEmail, email string) string {
	return render(t.passwordChanged, fullname, supportEmail, email)
}

func render(body, fullname, link, email string) string {
	r := strings.NewReplacer(
		"$fullname", fullname,
		"$link", link,
		"$emailId", email,
	)
	return r.Replace(body)
}
