package schema

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const isoDate = "2006-01-02"

// Placeholders used when a required field has no example.
const (
	SampleNumber = 1000
	SampleEmail  = "example@example.com"
)

// Sample builds an example payload for key. For the "zh" locale the four
// bundled templates get hand-written data; everything else is derived from
// the entry: examples when present, otherwise a per-kind placeholder.
// Optional fields are included only when they carry an example.
func Sample(key string, e *Entry, locale string, now time.Time) map[string]any {
	if locale == "zh" {
		if fn, ok := zhSamples[Key(key)]; ok {
			return fn(now)
		}
	}
	out := make(map[string]any, len(e.Required)+len(e.Optional))
	title := cases.Title(language.English)
	for _, f := range e.Required {
		if hasExample(f.Example) {
			out[f.Name] = f.Example
			continue
		}
		switch {
		case f.Type == KindNumber:
			out[f.Name] = SampleNumber
		case f.Type == KindArray:
			out[f.Name] = []any{}
		case f.Type == KindObject:
			out[f.Name] = map[string]any{}
		case f.Format == "date":
			out[f.Name] = now.Format(isoDate)
		case f.Format == "email":
			out[f.Name] = SampleEmail
		default:
			out[f.Name] = "Sample " + title.String(strings.ReplaceAll(f.Name, "_", " "))
		}
	}
	for _, f := range e.Optional {
		if hasExample(f.Example) {
			out[f.Name] = f.Example
		}
	}
	return out
}

// hasExample treats zero values (empty string, 0, false, empty list/object)
// as "no example".
func hasExample(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

var zhSamples = map[string]func(now time.Time) map[string]any{
	"invoice": func(now time.Time) map[string]any {
		return map[string]any{
			"company_name":     "科技创新有限公司",
			"company_address":  "北京市海淀区中关村科技园A座1001",
			"company_email":    "info@keji.com.cn",
			"company_phone":    "010-88889999",
			"customer_name":    "张三",
			"customer_address": "上海市浦东新区陆家嘴金融中心",
			"customer_email":   "zhangsan@example.cn",
			"invoice_number":   "FP-2025-001",
			"invoice_date":     now.Format(isoDate),
			"due_date":         now.AddDate(0, 0, 30).Format(isoDate),
			"items": []any{
				map[string]any{"description": "软件开发服务", "quantity": 1, "unit_price": 50000, "total": 50000},
				map[string]any{"description": "技术咨询服务", "quantity": 10, "unit_price": 2000, "total": 20000},
			},
			"subtotal":   70000,
			"tax_rate":   0.06,
			"tax_amount": 4200,
			"total":      74200,
			"notes":      "感谢您的合作！",
			"terms":      "收到发票后30天内付款",
		}
	},
	"letter": func(now time.Time) map[string]any {
		return map[string]any{
			"sender_name":       "王明",
			"sender_title":      "市场部经理",
			"sender_address":    "北京市朝阳区建国路88号",
			"sender_city":       "北京",
			"sender_state":      "北京市",
			"sender_zip":        "100022",
			"sender_email":      "wangming@company.cn",
			"sender_phone":      "138-0000-1234",
			"letter_date":       now.Format(isoDate),
			"recipient_name":    "李华",
			"recipient_title":   "总经理",
			"recipient_company": "创新科技有限公司",
			"recipient_address": "上海市浦东新区世纪大道100号",
			"recipient_city":    "上海",
			"recipient_state":   "上海市",
			"recipient_zip":     "200120",
			"subject":           "关于商务合作的提案",
			"salutation":        "尊敬的李总",
			"body_paragraphs": []any{
				"很高兴有机会向您介绍我们的最新产品和服务。",
				"我们公司专注于提供高质量的技术解决方案，已经为众多客户提供了优质的服务。",
				"期待能够与贵公司建立长期的合作关系。",
			},
			"closing":    "此致敬礼",
			"enclosures": []any{"产品介绍手册", "合作方案书"},
			"cc_list":    []any{"销售总监", "技术总监"},
		}
	},
	"report": func(now time.Time) map[string]any {
		return map[string]any{
			"report_title":      "年度业绩报告",
			"report_subtitle":   "2025财政年度",
			"author_name":       "陈晓",
			"department":        "财务部",
			"report_date":       now.Format(isoDate),
			"executive_summary": "本报告总结了公司2025年度的财务表现和主要成就。",
			"sections": []any{
				map[string]any{"title": "概述", "content": "2025年公司业绩稳步增长，营收同比增长25%。"},
				map[string]any{"title": "财务分析", "content": "详细的财务数据分析显示各部门均实现了预定目标。"},
			},
			"conclusions":     "公司整体表现优异，达到了年初制定的各项目标。",
			"recommendations": []any{"继续加大研发投入", "拓展海外市场", "优化成本结构"},
		}
	},
	"contract": func(now time.Time) map[string]any {
		return map[string]any{
			"contract_type":     "服务",
			"contract_number":   "HT-2025-001",
			"contract_date":     now.Format(isoDate),
			"party1_name":       "甲方科技有限公司",
			"party1_address":    "北京市海淀区中关村大街1号",
			"party1_short_name": "甲方",
			"party2_name":       "乙方服务有限公司",
			"party2_address":    "上海市浦东新区张江高科技园区",
			"party2_short_name": "乙方",
			"whereas_clause":    "鉴于甲方需要技术服务，乙方具备相应的技术能力和资质",
			"clauses": []any{
				map[string]any{
					"title":   "服务内容",
					"content": "乙方为甲方提供软件开发和技术支持服务。",
					"subclauses": []any{
						map[string]any{"number": "1", "content": "软件开发服务"},
						map[string]any{"number": "2", "content": "技术支持服务"},
					},
				},
				map[string]any{"title": "合作期限", "content": "本合同有效期为一年，自签署之日起生效。", "subclauses": []any{}},
			},
			"party1_signatory": "张总",
			"party1_title":     "总经理",
			"party2_signatory": "李总",
			"party2_title":     "总经理",
			"signature_date1":  now.Format(isoDate),
			"signature_date2":  now.Format(isoDate),
		}
	},
}
