package sectors

// SectorOther is the label for anything no rule recognizes
const SectorOther = "기타"

// Rule maps a name substring to a sector. Higher priority rules are tried first.
type Rule struct {
	Keyword  string
	Sector   string
	Priority int
}

// builtinRules are tried in order after overrides and stored rules.
// Order matters: 연료전지 must win over 전지, 반도체 over 전자.
var builtinRules = []Rule{
	{Keyword: "바이오", Sector: "바이오/제약"},
	{Keyword: "제약", Sector: "바이오/제약"},
	{Keyword: "약품", Sector: "바이오/제약"},
	{Keyword: "파마", Sector: "바이오/제약"},
	{Keyword: "셀트리온", Sector: "바이오/제약"},
	{Keyword: "반도체", Sector: "반도체"},
	{Keyword: "하이닉스", Sector: "반도체"},
	{Keyword: "연료전지", Sector: "에너지/유틸리티"},
	{Keyword: "수소", Sector: "에너지/유틸리티"},
	{Keyword: "에너지솔루션", Sector: "2차전지"},
	{Keyword: "에코프로", Sector: "2차전지"},
	{Keyword: "배터리", Sector: "2차전지"},
	{Keyword: "전지", Sector: "2차전지"},
	{Keyword: "에어로스페이스", Sector: "방산/우주"},
	{Keyword: "항공우주", Sector: "방산/우주"},
	{Keyword: "넥스원", Sector: "방산/우주"},
	{Keyword: "방산", Sector: "방산/우주"},
	{Keyword: "자동차", Sector: "자동차"},
	{Keyword: "모비스", Sector: "자동차"},
	{Keyword: "현대차", Sector: "자동차"},
	{Keyword: "기아", Sector: "자동차"},
	{Keyword: "중공업", Sector: "조선"},
	{Keyword: "조선", Sector: "조선"},
	{Keyword: "미포", Sector: "조선"},
	{Keyword: "철강", Sector: "철강/소재"},
	{Keyword: "제철", Sector: "철강/소재"},
	{Keyword: "스틸", Sector: "철강/소재"},
	{Keyword: "POSCO", Sector: "철강/소재"},
	{Keyword: "포스코", Sector: "철강/소재"},
	{Keyword: "화학", Sector: "화학"},
	{Keyword: "케미칼", Sector: "화학"},
	{Keyword: "금융", Sector: "금융"},
	{Keyword: "은행", Sector: "금융"},
	{Keyword: "증권", Sector: "금융"},
	{Keyword: "보험", Sector: "금융"},
	{Keyword: "캐피탈", Sector: "금융"},
	{Keyword: "카드", Sector: "금융"},
	{Keyword: "게임즈", Sector: "게임"},
	{Keyword: "엔씨소프트", Sector: "게임"},
	{Keyword: "넷마블", Sector: "게임"},
	{Keyword: "크래프톤", Sector: "게임"},
	{Keyword: "펄어비스", Sector: "게임"},
	{Keyword: "엔터", Sector: "엔터/미디어"},
	{Keyword: "스튜디오", Sector: "엔터/미디어"},
	{Keyword: "미디어", Sector: "엔터/미디어"},
	{Keyword: "방송", Sector: "엔터/미디어"},
	{Keyword: "건설", Sector: "건설"},
	{Keyword: "건업", Sector: "건설"},
	{Keyword: "텔레콤", Sector: "통신"},
	{Keyword: "통신", Sector: "통신"},
	{Keyword: "항공", Sector: "운송"},
	{Keyword: "해운", Sector: "운송"},
	{Keyword: "물류", Sector: "운송"},
	{Keyword: "글로비스", Sector: "운송"},
	{Keyword: "전력", Sector: "에너지/유틸리티"},
	{Keyword: "가스", Sector: "에너지/유틸리티"},
	{Keyword: "에너지", Sector: "에너지/유틸리티"},
	{Keyword: "식품", Sector: "음식료"},
	{Keyword: "음료", Sector: "음식료"},
	{Keyword: "제과", Sector: "음식료"},
	{Keyword: "푸드", Sector: "음식료"},
	{Keyword: "화장품", Sector: "화장품"},
	{Keyword: "코스메틱", Sector: "화장품"},
	{Keyword: "NAVER", Sector: "인터넷/소프트웨어"},
	{Keyword: "카카오", Sector: "인터넷/소프트웨어"},
	{Keyword: "소프트", Sector: "인터넷/소프트웨어"},
	{Keyword: "플랫폼", Sector: "인터넷/소프트웨어"},
	{Keyword: "유통", Sector: "유통"},
	{Keyword: "리테일", Sector: "유통"},
	{Keyword: "백화점", Sector: "유통"},
	{Keyword: "전자", Sector: "IT하드웨어"},
	{Keyword: "디스플레이", Sector: "IT하드웨어"},
}

// builtinOverrides pins large caps whose names do not reveal their business
var builtinOverrides = map[string]string{
	"005930": "반도체",       // 삼성전자
	"000660": "반도체",       // SK하이닉스
	"373220": "2차전지",      // LG에너지솔루션
	"006400": "2차전지",      // 삼성SDI
	"207940": "바이오/제약",    // 삼성바이오로직스
	"068270": "바이오/제약",    // 셀트리온
	"005380": "자동차",       // 현대차
	"000270": "자동차",       // 기아
	"035420": "인터넷/소프트웨어", // NAVER
	"035720": "인터넷/소프트웨어", // 카카오
	"005490": "철강/소재",     // POSCO홀딩스
	"051910": "화학",        // LG화학
	"105560": "금융",        // KB금융
	"055550": "금융",        // 신한지주
	"012450": "방산/우주",     // 한화에어로스페이스
	"329180": "조선",        // HD현대중공업
	"017670": "통신",        // SK텔레콤
	"033780": "음식료",       // KT&G
}

// KeywordTheme is a named list of literal substrings matched against stock names
type KeywordTheme struct {
	Name     string
	Keywords []string
}

// DefaultKeywordThemes returns the built-in theme table in display order
func DefaultKeywordThemes() []KeywordTheme {
	return []KeywordTheme{
		{Name: "AI/ChatGPT", Keywords: []string{"AI", "인공지능", "ChatGPT", "챗GPT", "생성AI"}},
		{Name: "K-컬처", Keywords: []string{"한류", "BTS", "K-POP", "웹툰", "OTT"}},
		{Name: "메타버스", Keywords: []string{"메타버스", "VR", "AR", "가상현실"}},
		{Name: "수소경제", Keywords: []string{"수소", "연료전지", "그린수소"}},
		{Name: "우주항공", Keywords: []string{"우주", "위성", "발사체", "항공우주"}},
		{Name: "탄소중립", Keywords: []string{"ESG", "친환경", "태양광", "풍력"}},
		{Name: "국방", Keywords: []string{"방산", "국방", "무기", "방위산업"}},
	}
}

var megaSectors = map[string]string{
	"반도체":        "기술·IT",
	"IT하드웨어":     "기술·IT",
	"인터넷/소프트웨어":  "기술·IT",
	"통신":         "기술·IT",
	"AI/ChatGPT": "기술·IT",
	"메타버스":       "기술·IT",
	"2차전지":       "친환경·에너지",
	"에너지/유틸리티":   "친환경·에너지",
	"수소경제":       "친환경·에너지",
	"탄소중립":       "친환경·에너지",
	"바이오/제약":     "헬스케어",
	"자동차":        "산업재",
	"조선":         "산업재",
	"건설":         "산업재",
	"운송":         "산업재",
	"방산/우주":      "산업재",
	"우주항공":       "산업재",
	"국방":         "산업재",
	"철강/소재":      "소재",
	"화학":         "소재",
	"음식료":        "소비재",
	"유통":         "소비재",
	"화장품":        "소비재",
	"엔터/미디어":     "소비재",
	"게임":         "소비재",
	"K-컬처":       "소비재",
	"금융":         "금융",
}

var descriptions = map[string]string{
	"반도체":        "메모리·비메모리 반도체 설계, 제조, 장비 및 소재",
	"IT하드웨어":     "전자부품, 디스플레이, 전자기기 제조",
	"인터넷/소프트웨어":  "포털, 플랫폼, 소프트웨어 서비스",
	"통신":         "이동통신 및 유선 통신 서비스",
	"2차전지":       "배터리 셀, 양극재·음극재 등 2차전지 밸류체인",
	"에너지/유틸리티":   "전력, 가스, 발전 및 에너지 인프라",
	"바이오/제약":     "신약 개발, 바이오시밀러, 위탁생산",
	"자동차":        "완성차 및 자동차 부품",
	"조선":         "선박 건조 및 해양 플랜트",
	"건설":         "건축, 토목, 플랜트 시공",
	"운송":         "항공, 해운, 육상 물류",
	"방산/우주":      "방위산업 및 항공우주 체계",
	"철강/소재":      "철강 및 비철금속 소재",
	"화학":         "석유화학 및 정밀화학",
	"음식료":        "식품, 음료, 담배",
	"유통":         "백화점, 대형마트, 온라인 유통",
	"화장품":        "화장품 브랜드 및 ODM",
	"엔터/미디어":     "음반, 드라마, 방송 콘텐츠",
	"게임":         "온라인·모바일 게임 개발 및 퍼블리싱",
	"금융":         "은행, 증권, 보험, 카드",
	"AI/ChatGPT": "생성형 AI 및 인공지능 관련 종목",
	"K-컬처":       "한류 콘텐츠, K-POP, 웹툰, OTT",
	"메타버스":       "가상현실·증강현실 및 메타버스 플랫폼",
	"수소경제":       "수소 생산, 연료전지, 수소 인프라",
	"우주항공":       "위성, 발사체 등 우주항공 산업",
	"탄소중립":       "친환경 에너지, 태양광·풍력, ESG",
	"국방":         "방위산업 및 국방 관련 종목",
}

// MegaSector returns the coarse grouping for a sector or theme name
func MegaSector(name string) string {
	if m, ok := megaSectors[name]; ok {
		return m
	}
	return SectorOther
}

// Description returns a one-line explanation of a sector or theme
func Description(name string) string {
	if d, ok := descriptions[name]; ok {
		return d
	}
	return name + " 관련 종목"
}
