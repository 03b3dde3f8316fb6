package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供下载请求的通用字段，source 取值 local/remote/none。
func RequestFields(requestID, method, path, source string) logrus.Fields {
	fields := logrus.Fields{
		"method": method,
		"path":   path,
		"source": source,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// DirectoryFields 描述一次 Releases 目录访问，供 directory 客户端日志复用。
func DirectoryFields(owner, repo, authMode string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"owner":     owner,
		"repo":      repo,
		"auth_mode": authMode,
		"cache_hit": cacheHit,
	}
}
