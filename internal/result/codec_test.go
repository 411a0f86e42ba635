package result

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRow(t *testing.T) {
	s := Snapshot{
		Identity:    "/imgs/IMG_0001.jpg",
		CaptureTime: time.Date(2024, 5, 18, 9, 30, 12, 0, time.UTC),
		Category:    CategoryFinish,
		State:       StatePendingUpload,
		Numbers:     []int{12, 518},
	}

	line, err := MarshalRow(s)
	require.NoError(t, err)
	assert.Equal(t, "/imgs/IMG_0001.jpg;2;PENDING_UPLOAD;12,518;2024-05-18T09:30:12Z", line)
}

func TestMarshalRow_RejectsSeparatorInIdentity(t *testing.T) {
	_, err := MarshalRow(Snapshot{Identity: "a;b.jpg", State: StateRegistered})
	assert.ErrorIs(t, err, ErrMalformedRow)
	assert.False(t, ValidIdentity("a\nb"))
	assert.False(t, ValidIdentity(""))
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Snapshot
		wantErr bool
	}{
		{
			name: "four fields without numbers",
			line: "/imgs/a.jpg;1;FTP_UPLOADED;",
			want: Snapshot{Identity: "/imgs/a.jpg", Category: CategoryCar, State: StateRegistered},
		},
		{
			name: "with capture time and trailing newline",
			line: "/imgs/b.jpg;2;UPLOADED;7,8;2024-01-02T03:04:05Z\n",
			want: Snapshot{
				Identity:    "/imgs/b.jpg",
				Category:    CategoryFinish,
				State:       StateUploaded,
				Numbers:     []int{7, 8},
				CaptureTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			},
		},
		{
			name: "one number per field",
			line: "/imgs/c.jpg;2;PENDING_UPLOAD;518;12;7",
			want: Snapshot{Identity: "/imgs/c.jpg", Category: CategoryFinish, State: StatePendingUpload, Numbers: []int{518, 12, 7}},
		},
		{
			name: "two numbers in separate fields",
			line: "/imgs/d.jpg;1;UPLOADED;518;12",
			want: Snapshot{Identity: "/imgs/d.jpg", Category: CategoryCar, State: StateUploaded, Numbers: []int{518, 12}},
		},
		{
			name: "empty fifth field",
			line: "/imgs/e.jpg;2;PENDING_MANUALLY;;",
			want: Snapshot{Identity: "/imgs/e.jpg", Category: CategoryFinish, State: StatePendingManually},
		},
		{name: "too few fields", line: "/imgs/a.jpg;1;NEW", wantErr: true},
		{name: "bad number in later field", line: "/imgs/a.jpg;1;UPLOADED;518;12;x", wantErr: true},
		{name: "unknown state", line: "/imgs/a.jpg;1;DONE;", wantErr: true},
		{name: "unknown category", line: "/imgs/a.jpg;9;NEW;", wantErr: true},
		{name: "bad number", line: "/imgs/a.jpg;1;PENDING_UPLOAD;12,x", wantErr: true},
		{name: "bad time", line: "/imgs/a.jpg;1;PENDING_UPLOAD;12;yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRow(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRow_SeparateNumberFieldsRewrittenWithCommas(t *testing.T) {
	s, err := ParseRow("/imgs/c.jpg;2;UPLOADED;518;12;7")
	require.NoError(t, err)

	line, err := MarshalRow(s)
	require.NoError(t, err)
	assert.Equal(t, "/imgs/c.jpg;2;UPLOADED;518,12,7", line)
}

func TestUploadRows(t *testing.T) {
	s := Snapshot{
		CaptureTime: time.Date(2024, 5, 18, 9, 30, 12, 0, time.UTC),
		Category:    CategoryCar,
		Numbers:     []int{5, 518},
	}

	assert.Equal(t, []string{
		"5;2024-05-18 09:30:12;car",
		"518;2024-05-18 09:30:12;car",
	}, UploadRows(s))
	assert.Empty(t, UploadRows(Snapshot{Category: CategoryCar}))
}
