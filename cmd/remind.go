package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/favark/favark/internal/shared"
	"github.com/urfave/cli/v3"
)

// RemindTakeout mails the monthly instruction to create a Google Takeout
// export and drop the zips into the staging folder.
func (r *Runner) RemindTakeout(ctx context.Context, cmd *cli.Command) error {
	today, err := r.todayLabel()
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[GoogleTakeout] Google Photos 백업 안내 (%s)", today)
	body := strings.Join([]string{
		"Google Photos 자동 Favorites 백업이 API 정책 변경으로 제한되어,",
		"월 1회 Google Takeout으로 내보내기(수동) 후 자동 처리(Drive→백업)를 진행합니다.",
		"",
		"## 1) Google Takeout 생성(수동)",
		"1. Google Takeout 접속: https://takeout.google.com/",
		"2. '선택 해제' 클릭 후 'Google Photos'만 선택",
		"3. '다음 단계' 클릭",
		"4. 전송 방법: 'Drive에 추가' 선택 (권장)",
		"5. 내보내기 빈도: '1회' 또는 '2개월마다'(가능한 경우) 선택",
		"6. 파일 형식: .zip",
		"7. 내보내기 생성",
		"",
		"## 2) 완료 메일 확인",
		"- Gmail로 '데이터가 준비되었습니다 / Takeout'류 메일이 도착하면 완료입니다.",
		"",
		"## 3) Drive에 생성된 Takeout 파일 이동(필수)",
		"아래 폴더(워크플로가 보는 Takeout 소스 폴더)에 Takeout zip을 넣어주세요.",
		"- (관리자 설정) TAKEOUT_FOLDER_ID",
		"",
		"## 4) 자동 처리(매일 확인)",
		"- 스케줄러가 매일 Gmail(완료 메일) + Drive(Takeout zip)를 확인합니다.",
		"- 새 Takeout zip이 있으면 Favorites로 표시된 항목만 추출하여",
		"  백업 폴더 구조(촬영일 기준)로 업로드합니다.",
		"",
		"## 결과",
		"- 처리 결과는 CI Summary와 이메일로 통보됩니다.",
		"",
		fmt.Sprintf("(기준일: %s)", today),
		"",
	}, "\n")

	return r.sendReminder(ctx, subject, body)
}

// RemindQuality mails the storage-quality maintenance reminder.
func (r *Runner) RemindQuality(ctx context.Context, cmd *cli.Command) error {
	today, err := r.todayLabel()
	if err != nil {
		return err
	}

	subject := "[GooglePhotos] 화질 관리 작업 안내"
	body := strings.Join([]string{
		"Google Photos 저장공간 관리 작업 시점입니다.",
		"",
		"1) Google Photos → 저장공간 복구 실행",
		"2) 백업 화질을 다시 Original로 설정",
		"",
		"(이 작업은 수동 수행)",
		fmt.Sprintf("(기준일: %s)", today),
		"",
	}, "\n")

	return r.sendReminder(ctx, subject, body)
}

func (r *Runner) todayLabel() (string, error) {
	loc, err := shared.LoadLocation(r.config.Backup.Timezone)
	if err != nil {
		return "", err
	}
	return r.now().In(loc).Format("2006-01-02"), nil
}

func (r *Runner) sendReminder(ctx context.Context, subject, body string) error {
	recipients := r.config.Email.Recipients()
	if r.config.Email.SMTPHost == "" || len(recipients) == 0 {
		return fmt.Errorf("%w: smtp_host and recipients are required for reminders", shared.ErrInvalidConfig)
	}

	if err := r.sendMail(ctx, r.config.Email, recipients, subject, body); err != nil {
		return err
	}

	r.logger.Info("reminder sent", "subject", subject, "recipients", len(recipients))
	return r.writePlain("✓ Reminder sent to %d recipient(s)\n", len(recipients))
}
