// README: Staff mailbox provisioning: Google Workspace Directory, or a local address when unconfigured.
package staff

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"unicode"

	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// MailboxProvisioner creates a mailbox for a new staff member and returns its address.
// DeleteMailbox undoes CreateMailbox when the staff row cannot be stored.
type MailboxProvisioner interface {
	CreateMailbox(ctx context.Context, fullName, password string) (string, error)
	DeleteMailbox(ctx context.Context, email string) error
}

// LocalProvisioner only derives the address; nothing is created remotely.
type LocalProvisioner struct {
	Domain string
}

func (p LocalProvisioner) CreateMailbox(_ context.Context, fullName, _ string) (string, error) {
	return MailboxAddress(fullName, p.Domain)
}

func (LocalProvisioner) DeleteMailbox(context.Context, string) error {
	return nil
}

// MailboxAddress builds firstname.lastname@domain from a display name.
func MailboxAddress(fullName, domain string) (string, error) {
	given, family := splitName(fullName)
	if given == "" {
		return "", fmt.Errorf("%w: name has no letters", ErrBadRequest)
	}
	local := given
	if family != "" {
		local += "." + family
	}
	return local + "@" + domain, nil
}

func splitName(fullName string) (string, string) {
	var parts []string
	for _, f := range strings.Fields(fullName) {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, f)
		if clean != "" {
			parts = append(parts, clean)
		}
	}
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[len(parts)-1]
	}
}

type WorkspaceProvisioner struct {
	users  *admin.UsersService
	domain string
}

// NewWorkspaceProvisioner impersonates adminSubject through domain-wide delegation.
func NewWorkspaceProvisioner(ctx context.Context, credentialsFile, adminSubject, domain string) (*WorkspaceProvisioner, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read workspace credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, admin.AdminDirectoryUserScope)
	if err != nil {
		return nil, fmt.Errorf("workspace credentials: %w", err)
	}
	conf.Subject = adminSubject
	svc, err := admin.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("admin directory service: %w", err)
	}
	return &WorkspaceProvisioner{users: svc.Users, domain: domain}, nil
}

func (p *WorkspaceProvisioner) CreateMailbox(ctx context.Context, fullName, password string) (string, error) {
	email, err := MailboxAddress(fullName, p.domain)
	if err != nil {
		return "", err
	}
	given, family := nameParts(fullName)
	_, err = p.users.Insert(&admin.User{
		PrimaryEmail:              email,
		Password:                  password,
		ChangePasswordAtNextLogin: true,
		Name: &admin.UserName{
			GivenName:  given,
			FamilyName: family,
		},
	}).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return "", fmt.Errorf("%w: mailbox %s", ErrConflict, email)
	}
	if err != nil {
		return "", fmt.Errorf("workspace user insert: %w", err)
	}
	return email, nil
}

func (p *WorkspaceProvisioner) DeleteMailbox(ctx context.Context, email string) error {
	if err := p.users.Delete(email).Context(ctx).Do(); err != nil {
		return fmt.Errorf("workspace user delete: %w", err)
	}
	return nil
}

// nameParts keeps the display casing; Workspace requires a non-empty family name.
func nameParts(fullName string) (string, string) {
	f := strings.Fields(fullName)
	switch len(f) {
	case 0:
		return "", ""
	case 1:
		return f[0], f[0]
	default:
		return strings.Join(f[:len(f)-1], " "), f[len(f)-1]
	}
}
